// Package subtitles normalizes subtitle tracks for the converted output.
//
// Text tracks are decoded from whatever legacy charset they arrived in,
// cleaned of advertisement cues and written as UTF-8 with Romanian
// diacritics folded to the configured form. Image tracks (VobSub, PGS) are
// copied byte for byte. Every track gets a language from its filename, its
// stream tag or its content, and the first Romanian track is named so that
// players select it by default.
package subtitles
