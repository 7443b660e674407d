package core

import (
	"context"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// English message keys. They double as format strings if no translation is found.
const (
	msgPendingVisible = "Object is viewable on site, it will be removed if moderator rejects it"
	msgPendingHidden  = "Object is not viewable on site, it will be visible if moderator accepts it"
	msgRejected       = "Object has been rejected by moderator, reason: %s"
	msgApproved       = "Object has been approved by moderator and is visible on site"
	msgNotRegistered  = "This object is not registered with the moderation system."
)

var supportedLanguages = []language.Tag{
	language.AmericanEnglish, // default
	language.German,
}

var langMatcher = language.NewMatcher(supportedLanguages)

var messages = newCatalog()

func newCatalog() catalog.Catalog {
	var b = catalog.NewBuilder(catalog.Fallback(language.AmericanEnglish))
	var de = map[string]string{
		msgPendingVisible: "Das Objekt ist auf der Seite sichtbar, es wird entfernt, wenn ein Moderator es ablehnt",
		msgPendingHidden:  "Das Objekt ist auf der Seite nicht sichtbar, es wird sichtbar, wenn ein Moderator es annimmt",
		msgRejected:       "Das Objekt wurde von einem Moderator abgelehnt, Grund: %s",
		msgApproved:       "Das Objekt wurde von einem Moderator angenommen und ist auf der Seite sichtbar",
		msgNotRegistered:  "Dieses Objekt ist nicht beim Moderationssystem registriert.",
	}
	for key, translation := range de {
		if err := b.SetString(language.German, key, translation); err != nil {
			panic(err)
		}
	}
	return b
}

// MatchLanguage returns the best supported language for an Accept-Language header value.
func MatchLanguage(acceptLanguage string) language.Tag {
	_, index := language.MatchStrings(langMatcher, acceptLanguage)
	return supportedLanguages[index]
}

// NewPrinter returns a printer which translates moderation messages into the given language.
func NewPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(messages))
}

// Message describes a moderation status to humans. Use NotRegistered as status if there is no moderation record.
func Message(p *message.Printer, status Status, reason string, visibleUntilRejected bool) string {
	switch status {
	case Pending:
		if visibleUntilRejected {
			return p.Sprintf(msgPendingVisible)
		}
		return p.Sprintf(msgPendingHidden)
	case Rejected:
		return p.Sprintf(msgRejected, reason)
	case Approved:
		return p.Sprintf(msgApproved)
	default:
		return p.Sprintf(msgNotRegistered)
	}
}

type printerKey struct{}

var defaultPrinter = NewPrinter(language.AmericanEnglish)

// WithPrinter returns a context whose moderation messages are printed by p.
func WithPrinter(ctx context.Context, p *message.Printer) context.Context {
	return context.WithValue(ctx, printerKey{}, p)
}

// PrinterFrom returns the printer stored in ctx, or an English printer.
func PrinterFrom(ctx context.Context) *message.Printer {
	if p, ok := ctx.Value(printerKey{}).(*message.Printer); ok && p != nil {
		return p
	}
	return defaultPrinter
}
