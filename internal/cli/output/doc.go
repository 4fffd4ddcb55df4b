// Package output renders kvmesh-cli results as text tables, JSON or YAML.
package output
