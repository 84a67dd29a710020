// Package finalize relocates converted artifacts into the archive and tidies
// the scratch tree behind them.
//
// Movies land in <target movies>/<Title>/ and episodes in
// <target tv>/<Series>/SeasonNN/. The source is deleted only after every
// artifact reached its destination, and empty scratch directories are
// removed up to, never including, the configured roots.
package finalize
