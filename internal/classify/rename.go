package classify

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"mediaconv/internal/services"
)

// ApplyRenames performs the season folder renames on disk and rewrites the
// candidate paths that lived under a renamed folder. A rename whose source is
// gone but whose target exists is treated as already applied. An occupied
// target is left alone and reported as a classification error for the folder;
// its episodes keep their original paths.
func ApplyRenames(result Result) (Result, error) {
	out := Result{
		Jobs:   make([]Candidate, len(result.Jobs)),
		Errors: append([]*ClassificationError(nil), result.Errors...),
	}
	copy(out.Jobs, result.Jobs)

	for _, rename := range result.Renames {
		if rename.From == rename.To {
			continue
		}
		_, fromErr := os.Stat(rename.From)
		_, toErr := os.Stat(rename.To)
		switch {
		case errors.Is(fromErr, os.ErrNotExist) && toErr == nil:
			// already applied
		case fromErr != nil:
			return out, services.Wrap(services.ErrTransient, "classify", "stat season folder", rename.From, fromErr)
		case toErr == nil:
			out.addError(rename.From, "season folder target already exists: "+rename.To)
			continue
		default:
			if err := os.Rename(rename.From, rename.To); err != nil {
				return out, services.Wrap(services.ErrTransient, "classify", "rename season folder", rename.From, err)
			}
		}
		out.Renames = append(out.Renames, rename)
		for i := range out.Jobs {
			out.Jobs[i].SourcePath = rebase(out.Jobs[i].SourcePath, rename.From, rename.To)
		}
	}
	return out, nil
}

func rebase(path, from, to string) string {
	prefix := from + string(filepath.Separator)
	if strings.HasPrefix(path, prefix) {
		return filepath.Join(to, strings.TrimPrefix(path, prefix))
	}
	return path
}
