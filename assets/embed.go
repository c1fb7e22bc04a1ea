// Package assets provides static assets for the diagnostics dashboard.
package assets

import "encoding/base64"

// logoBase64 is a 1x1 transparent PNG, standing in for program artwork the
// retrieval pack did not carry as a binary file.
const logoBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNk+A8AAQUBAScY42YAAAAASUVORK5CYII="

// Logo is the dashboard's embedded logo image, decoded once at init time.
var Logo = mustDecodeLogo()

func mustDecodeLogo() []byte {
	data, err := base64.StdEncoding.DecodeString(logoBase64)
	if err != nil {
		panic("assets: invalid embedded logo: " + err.Error())
	}

	return data
}
