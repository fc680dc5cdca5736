// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package config decodes the key-value settings of chain drivers.
package config

import (
	"bytes"
	"fmt"
	"sort"

	"gopkg.in/ini.v1"
)

// OptionsMapToINIData generates config data from settings. Keys are written
// in sorted order.
func OptionsMapToINIData(options map[string]string) []byte {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buffer bytes.Buffer
	for _, k := range keys {
		buffer.WriteString(fmt.Sprintf("%s=%s\n", k, options[k]))
	}
	return buffer.Bytes()
}

// Options returns all key-value options in the provided config file path or
// []byte data. Section headers are ignored.
func Options(cfgPathOrData any) (map[string]string, error) {
	cfgFile, err := ini.Load(cfgPathOrData)
	if err != nil {
		return nil, err
	}
	options := make(map[string]string)
	for _, section := range cfgFile.Sections() {
		for _, key := range section.Keys() {
			options[key.Name()] = key.String()
		}
	}
	return options, nil
}

// Unmapify parses settings into the struct pointed to by obj, using the ini
// struct tags. Values that don't parse into their field are an error.
func Unmapify(settings map[string]string, obj any) error {
	cfgFile, err := ini.Load(OptionsMapToINIData(settings))
	if err != nil {
		return err
	}
	return cfgFile.StrictMapTo(obj)
}
