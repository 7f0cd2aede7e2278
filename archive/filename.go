package archive

import (
	"fmt"
	"strings"

	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/werrors"
)

const entryDateLayout = "20060102"

// entryName returns the ZIP central-directory entry name for alias/date:
// "<alias>/<alias>-YYYYMMDD.json".
func entryName(alias string, date model.Date) string {
	return fmt.Sprintf("%s/%s-%s.json", alias, alias, date.Format(entryDateLayout))
}

// dateFromEntryName decodes the date encoded in a ZIP entry name, rejecting
// anything that does not match the "<alias>/<alias>-YYYYMMDD.json" shape.
// The date is the single source of truth for a record's day; this is
// the one place that truth is recovered from a stored name.
func dateFromEntryName(alias, name string) (model.Date, error) {
	prefix := alias + "/" + alias + "-"
	const suffix = ".json"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) || len(name) < len(prefix)+len(suffix) {
		return model.Date{}, werrors.New(werrors.ErrCorruptData, "dateFromEntryName", name)
	}
	stamp := name[len(prefix) : len(name)-len(suffix)]
	if len(stamp) != 8 {
		return model.Date{}, werrors.New(werrors.ErrCorruptData, "dateFromEntryName", name)
	}
	for _, c := range stamp {
		if c < '0' || c > '9' {
			return model.Date{}, werrors.New(werrors.ErrCorruptData, "dateFromEntryName", name)
		}
	}
	date, err := model.ParseDate(stamp[:4] + "-" + stamp[4:6] + "-" + stamp[6:8])
	if err != nil {
		return model.Date{}, werrors.Wrap(werrors.ErrCorruptData, "dateFromEntryName", name, err)
	}
	return date, nil
}
