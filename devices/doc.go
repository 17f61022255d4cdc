// Package devices holds the fixed-point measurement units shared by device
// packages, such as the temperature unit wtc640 reports FPA readings in.
package devices
