// Package language maps stream tags and subtitle filename tokens to ISO 639-1
// codes. Stream tags go through golang.org/x/text/language so any ISO 639
// code or IETF tag resolves; filename tokens only match a curated list of
// release aliases.
package language
