package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// MapValue is the sealed variant of a MapEntry's value: DirectoryMap,
// FileMap, or SoftwareArchives.
type MapValue interface {
	isMapValue()
}

// DirectoryMap backs a virtual map name with a real directory.
type DirectoryMap struct {
	SourceDir string `yaml:"source_dir"`
}

func (*DirectoryMap) isMapValue() {}

// FileMap backs a virtual map name with a single file, optionally a ZIP
// archive whose internal entry is selected explicitly or by basename match.
type FileMap struct {
	SourceFilename  string `yaml:"source_filename"`
	Unzip           bool   `yaml:"unzip"`
	ZipInternalFile string `yaml:"zip_internal_file"`
}

func (*FileMap) isMapValue() {}

// ResolvedUnzip reports whether this FileMap should be resolved through a
// ZIP archive: explicit presence of ZipInternalFile is sufficient to imply
// unzip=true, per the fixed Open Question decision in spec.md §9.
func (f *FileMap) ResolvedUnzip() bool {
	return f.Unzip || f.ZipInternalFile != ""
}

// FiletypeEntry is one {virtual_folder: extension-spec} pair of a
// SoftwareArchives entry's filetypes list.
type FiletypeEntry struct {
	VirtualFolder string
	Spec          string
}

// SoftwareArchives synthesizes content under SourceDir, reshaped by
// extension into virtual folders, with configurable ZIP traversal.
type SoftwareArchives struct {
	SourceDir   string          `yaml:"source_dir"`
	Filetypes   []FiletypeEntry `yaml:"filetypes"`
	SupportsZip bool            `yaml:"supports_zip"`
	ZipMode     ZipMode         `yaml:"zip_mode"`
	Files       []string        `yaml:"files"`
}

func (*SoftwareArchives) isMapValue() {}

// EffectiveZipMode returns ZipMode, defaulting to hierarchical when unset.
func (s *SoftwareArchives) EffectiveZipMode() ZipMode {
	if s.ZipMode == "" {
		return ZipModeHierarchical
	}

	return s.ZipMode
}

// FiletypeMaps parses the SoftwareArchives' Filetypes into the two maps
// described by spec.md §3 "Extension-spec": virtual_folder -> [real_ext],
// and (for explicit "R:V" forms only) real_ext -> virtual_ext.
func (s *SoftwareArchives) FiletypeMaps() (map[string][]string, map[string]string) {
	folderToExts := make(map[string][]string)
	realToVirt := make(map[string]string)

	for _, ft := range s.Filetypes {
		folder := strings.ToUpper(ft.VirtualFolder)
		if _, ok := folderToExts[folder]; !ok {
			folderToExts[folder] = nil
		}

		for _, tok := range strings.Split(ft.Spec, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}

			if real, virt, ok := strings.Cut(tok, ":"); ok {
				real = strings.ToUpper(strings.TrimSpace(real))
				virt = strings.ToUpper(strings.TrimSpace(virt))
				folderToExts[folder] = append(folderToExts[folder], real)
				realToVirt[real] = virt
			} else {
				ext := strings.ToUpper(tok)
				folderToExts[folder] = append(folderToExts[folder], ext)
			}
		}
	}

	return folderToExts, realToVirt
}

// MapEntry is a single named mapping rule; Name may contain "/" to declare
// a nested virtual path (e.g. "HDs/beeb1_mmb.VHD").
type MapEntry struct {
	Name  string
	Value MapValue
}

// UnmarshalYAML decodes a MapEntry from its single-key mapping form,
// inspecting the child key to pick the MapValue variant, mirroring the
// original document's `list(m.keys())[0]` dispatch.
func (m *MapEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 { //nolint:mnd
		return fmt.Errorf("%w: map entry must be a single-key mapping", errInvalidMapEntry)
	}

	name := value.Content[0].Value
	body := value.Content[1]

	if name == SoftwareArchivesKey {
		var sa SoftwareArchives
		if err := body.Decode(&sa); err != nil {
			return fmt.Errorf("decode software archives entry: %w", err)
		}

		if sa.ZipMode == "" {
			sa.ZipMode = ZipModeHierarchical
		}
		if !sa.hasExplicitSupportsZip(body) {
			sa.SupportsZip = true
		}

		m.Name = name
		m.Value = &sa

		return nil
	}

	var raw struct {
		SourceDir       string `yaml:"source_dir"`
		SourceFilename  string `yaml:"source_filename"`
		Unzip           bool   `yaml:"unzip"`
		ZipInternalFile string `yaml:"zip_internal_file"`
	}
	if err := body.Decode(&raw); err != nil {
		return fmt.Errorf("decode map entry %q: %w", name, err)
	}

	m.Name = name

	switch {
	case raw.SourceDir != "":
		m.Value = &DirectoryMap{SourceDir: raw.SourceDir}
	case raw.SourceFilename != "":
		m.Value = &FileMap{
			SourceFilename:  raw.SourceFilename,
			Unzip:           raw.Unzip,
			ZipInternalFile: raw.ZipInternalFile,
		}
	default:
		return fmt.Errorf("%w: map entry %q has neither source_dir nor source_filename", errInvalidMapEntry, name)
	}

	return nil
}

// hasExplicitSupportsZip reports whether the raw YAML node sets
// supports_zip explicitly, so the default (true) is only applied when absent.
func (s *SoftwareArchives) hasExplicitSupportsZip(body *yaml.Node) bool {
	if body.Kind != yaml.MappingNode {
		return false
	}

	for i := 0; i+1 < len(body.Content); i += 2 { //nolint:mnd
		if body.Content[i].Value == "supports_zip" {
			return true
		}
	}

	return false
}

// UnmarshalYAML decodes a FiletypeEntry from its single-key mapping form,
// e.g. {HDs: "MMB:VHD,VHD"}.
func (f *FiletypeEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 { //nolint:mnd
		return fmt.Errorf("%w: filetype entry must be a single-key mapping", errInvalidMapEntry)
	}

	f.VirtualFolder = value.Content[0].Value

	return value.Content[1].Decode(&f.Spec)
}
