// Package mem provides address-size alignment helpers.
//
// # Alignment
//
// Every arena allocation is rounded up to the width of a pointer on the
// target platform, so any block handed out can hold pointer-sized fields.
package mem
