// Package translate formats user visible messages for the synvm tools,
// honoring the locale of the host.
//
// The language is picked, in order, from the SYNVM_LANG environment
// variable, the host's locale list, and finally Fallback. SetLanguage
// overrides the choice at run time.
package translate

import (
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	Fallback = "en-US"      // Language used when nothing else matches.
	ENV_LANG = "SYNVM_LANG" // Comma separated language override.
)

type catalog struct {
	tag     language.Tag
	printer *message.Printer
}

var current atomic.Pointer[catalog]

func init() {
	SetLanguage(Locales()...)
}

// Locales lists the preferred languages of the host, most preferred first.
func Locales() (locales []string) {
	for _, name := range strings.Split(os.Getenv(ENV_LANG), ",") {
		name = strings.TrimSpace(name)
		if len(name) != 0 {
			locales = append(locales, name)
		}
	}
	if len(locales) != 0 {
		return
	}

	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("synvm: locale: %v", err)
	}

	return
}

// Match picks the supported language for a list of locales.
func Match(locales ...string) (tag language.Tag) {
	if len(locales) != 0 {
		tag = message.MatchLanguage(locales...)
	}
	if tag == language.Und {
		tag = language.MustParse(Fallback)
	}

	return
}

// NewPrinter returns a message printer matching the first supported
// locale in the list.
func NewPrinter(locales ...string) *message.Printer {
	return message.NewPrinter(Match(locales...))
}

// SetLanguage selects the language of From, and returns the match.
func SetLanguage(locales ...string) (tag language.Tag) {
	tag = Match(locales...)
	current.Store(&catalog{tag: tag, printer: message.NewPrinter(tag)})
	return
}

// Language is the language From currently formats in.
func Language() language.Tag {
	return current.Load().tag
}

// From an en-US Sprintf() format, translate to string.
func From(key message.Reference, args ...any) string {
	return current.Load().printer.Sprintf(key, args...)
}
