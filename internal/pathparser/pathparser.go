// Package pathparser splits an absolute virtual path under a Config's
// mountpoint into client/system/map-name/remainder components, identifying
// any embedded ZIP boundary along the way.
package pathparser

import (
	"path"
	"strings"

	"github.com/retrofs/transfs/internal/config"
)

// Kind tags the shape of a parsed virtual path.
type Kind int

const (
	// TopLevel is the mountpoint root itself.
	TopLevel Kind = iota

	// Native is the "/Native" pass-through gateway to the raw filestore.
	Native

	// InClient is a client's root itself.
	InClient

	// InSystem is a system's root itself.
	InSystem

	// InMap is a path under a system's map namespace.
	InMap

	// Unknown is a path that does not resolve under any client/system.
	Unknown
)

// Result is the tagged outcome of Parse.
type Result struct {
	Kind Kind

	Client string
	System string

	// MapName is the longest declared map key (possibly containing "/")
	// that prefix-matches the path's map-namespace segments. Empty when
	// no declared map name matches (e.g. an intermediate nested-key
	// directory, or an unmapped path under the system).
	MapName string

	// Remainder is the path segments beyond MapName (or, when MapName is
	// empty, the full map-namespace segments).
	Remainder []string

	// HasZipBoundary is true when a segment of Remainder structurally
	// looks like a ZIP archive name (ends in ".zip", case-insensitive).
	// Parse does not touch the filesystem to confirm this: confirming
	// that the candidate is actually a regular file (and not a same-named
	// real directory) is the SourceResolver's job, since it alone talks
	// to the backing store and the ZipIndex (spec.md §4.1, §4.2).
	HasZipBoundary bool

	// ZipBoundaryIndex is the index into Remainder of the ".zip" segment,
	// valid only when HasZipBoundary is true.
	ZipBoundaryIndex int

	// ZipInnerPath is the POSIX-normalized remainder path after the ZIP
	// boundary segment, valid only when HasZipBoundary is true.
	ZipInnerPath string
}

// Parse splits virtualPath (an absolute path presented under cfg.Mountpoint)
// into its client/system/map components.
func Parse(cfg *config.Config, virtualPath string) Result {
	rel := relativeToMountpoint(cfg.Mountpoint, virtualPath)
	segments := splitClean(rel)

	if len(segments) == 0 {
		return Result{Kind: TopLevel}
	}

	if segments[0] == "Native" {
		return Result{Kind: Native, Remainder: segments[1:]}
	}

	client := cfg.FindClient(segments[0])
	if client == nil {
		return Result{Kind: Unknown}
	}
	if len(segments) == 1 {
		return Result{Kind: InClient, Client: client.Name}
	}

	system := client.FindSystem(segments[1])
	if system == nil {
		return Result{Kind: Unknown}
	}
	if len(segments) == 2 { //nolint:mnd
		return Result{Kind: InSystem, Client: client.Name, System: system.Name}
	}

	mapParts := segments[2:]
	mapName, remainder := longestMapPrefix(system, mapParts)

	res := Result{
		Kind:      InMap,
		Client:    client.Name,
		System:    system.Name,
		MapName:   mapName,
		Remainder: remainder,
	}

	for i, seg := range remainder {
		if strings.HasSuffix(strings.ToLower(seg), ".zip") {
			res.HasZipBoundary = true
			res.ZipBoundaryIndex = i
			res.ZipInnerPath = path.Join(remainder[i+1:]...)

			break
		}
	}

	return res
}

// longestMapPrefix tries progressively shorter joins of mapParts against
// the system's declared map names, preferring the longest match, mirroring
// the original `for i in range(len(map_path_parts), 0, -1)` loop.
func longestMapPrefix(system *config.System, mapParts []string) (string, []string) {
	for i := len(mapParts); i > 0; i-- {
		candidate := strings.Join(mapParts[:i], "/")
		for _, m := range system.Maps {
			if m.Name == candidate {
				return candidate, mapParts[i:]
			}
		}
	}

	return "", mapParts
}

func relativeToMountpoint(mountpoint, virtualPath string) string {
	cleanMount := strings.TrimSuffix(path.Clean(mountpoint), "/")
	cleanPath := path.Clean(virtualPath)

	rel := strings.TrimPrefix(cleanPath, cleanMount)

	return strings.TrimPrefix(rel, "/")
}

func splitClean(rel string) []string {
	if rel == "" || rel == "." {
		return nil
	}

	parts := strings.Split(rel, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
