package viewmodel

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/noah-isme/school-events-gateway/internal/models"
)

// User facing texts. The backend and its pages are Czech.
const (
	MessageRegistered        = "Úspěšně jste se zaregistrovali na akci!"
	labelRegister            = "Registrovat se"
	labelFull                = "Plně obsazeno"
	labelRegisteredBadge     = "✓ Zaregistrován"
	labelUpcoming            = "Nadcházející"
	labelPast                = "Proběhlo"
	titleCurrent             = "Nadcházející akce"
	titlePrevious            = "Minulé akce"
	emptyCurrentSearch       = "Žádné nadcházející akce nevyhovují vašemu hledání."
	emptyCurrent             = "Momentálně nejsou žádné nadcházející akce."
	emptyPreviousSearch      = "Žádné minulé akce nevyhovují vašemu hledání."
	emptyPrevious            = "Zatím nejsou žádné minulé akce."
	emptyStudentsSearch      = "Žádní studenti nevyhovují vašemu hledání."
	emptyStudents            = "Zatím nejsou žádní studenti."
	unavailableAlreadyJoined = "Na tuto akci jste již zaregistrováni."
	unavailablePast          = "Tato akce již proběhla."
)

func newPrinter(tag language.Tag) *message.Printer {
	if tag == language.Und {
		tag = language.Czech
	}
	return message.NewPrinter(tag)
}

func actionLabel(action models.EventAction) string {
	switch action {
	case models.ActionRegister:
		return labelRegister
	case models.ActionFull:
		return labelFull
	case models.ActionRegistered:
		return labelRegisteredBadge
	default:
		return ""
	}
}

func statusLabel(section models.EventSection) string {
	if section == models.SectionPrevious {
		return labelPast
	}
	return labelUpcoming
}

// dateLabel renders a date the way cs-CZ browsers do: "1. 5. 2025".
func dateLabel(d models.Date) string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d. %d. %d", d.Day(), int(d.Month()), d.Year())
}

func capacityLabel(p *message.Printer, e models.Event) string {
	if !e.HasCapacityLimit() {
		return p.Sprintf("%d registrováno", e.RegisteredCount)
	}
	return p.Sprintf("%d/%d registrováno", e.RegisteredCount, *e.MaxStudents)
}

func sectionTitle(p *message.Printer, section models.EventSection, searchTerm string, filtered int) string {
	title := titleCurrent
	if section == models.SectionPrevious {
		title = titlePrevious
	}
	if searchTerm == "" {
		return title
	}
	return p.Sprintf("%s (%d)", title, filtered)
}

func emptyEventsMessage(section models.EventSection, searchTerm string) string {
	switch {
	case section == models.SectionPrevious && searchTerm != "":
		return emptyPreviousSearch
	case section == models.SectionPrevious:
		return emptyPrevious
	case searchTerm != "":
		return emptyCurrentSearch
	default:
		return emptyCurrent
	}
}

func emptyStudentsMessage(searchTerm string) string {
	if searchTerm != "" {
		return emptyStudentsSearch
	}
	return emptyStudents
}

// Initials returns the upper-cased first letter of every space separated part of name.
func Initials(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, " ") {
		for _, r := range part {
			b.WriteRune(unicode.ToUpper(r))
			break
		}
	}
	return b.String()
}
