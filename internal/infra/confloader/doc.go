// Package confloader fills koanf-tagged config structs from a YAML file
// and environment variables, and watches the file for edits.
//
// Values already present in the target struct act as defaults; the file
// overrides them and the environment overrides the file.
package confloader
