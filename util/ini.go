package util

import (
	"gopkg.in/ini.v1"
)

// IniSection is a named section of an ini file. Keys are case-sensitive.
type IniSection struct {
	Name string
	Keys map[string]string
}

// Ini loads an ini file and returns its non-empty sections in file order.
// The unnamed default section is skipped.
func Ini(filename string) ([]IniSection, error) {
	cfg, err := ini.Load(filename)
	if err != nil {
		return nil, err
	}
	var sections = []IniSection{}
	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		sections = append(sections, IniSection{
			Name: section.Name(),
			Keys: section.KeysHash(),
		})
	}
	return sections, nil
}
