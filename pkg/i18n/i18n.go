// Package i18n resolves the user's locale and translates the handful of
// strings the CLI prints.
package i18n

import (
	"os"
	"strings"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Supported lists the locales with a catalog, default first.
var Supported = []language.Tag{language.English, language.Spanish}

var matcher = language.NewMatcher(Supported)

// Message keys. The English catalog entry is the key itself unless it
// needs plural forms.
const (
	MsgLoggedInAs      = "Logged in as %s"
	MsgLoggedOut       = "Logged out"
	MsgSessionExpired  = "Session expired, run `quill login`"
	MsgSendFailed      = "Message not sent: %v"
	MsgNewMessage      = "New message in %s"
	MsgNewConversation = "New conversation %s"
	MsgNewMessages     = "%d new messages"
	MsgComments        = "%d comments"
	MsgFollowers       = "%d followers"
	MsgRealtimeOff     = "Realtime delivery is off: no app key configured"
	MsgLocaleSet       = "Locale set to %s"
	MsgChatHelp        = "Type a message and press enter. /image <path> sends a picture, /quit leaves."
)

func init() {
	en, es := language.English, language.Spanish

	set := func(tag language.Tag, key, msg string) { _ = message.SetString(tag, key, msg) }

	set(es, MsgLoggedInAs, "Sesión iniciada como %s")
	set(es, MsgLoggedOut, "Sesión cerrada")
	set(es, MsgSessionExpired, "La sesión ha caducado, ejecuta `quill login`")
	set(es, MsgSendFailed, "Mensaje no enviado: %v")
	set(es, MsgNewMessage, "Nuevo mensaje en %s")
	set(es, MsgNewConversation, "Nueva conversación %s")
	set(es, MsgRealtimeOff, "Entrega en tiempo real desactivada: falta la clave de la aplicación")
	set(es, MsgLocaleSet, "Idioma establecido: %s")
	set(es, MsgChatHelp, "Escribe un mensaje y pulsa intro. /image <ruta> envía una imagen, /quit sale.")

	plurals := []struct {
		key   string
		one   [2]string
		other [2]string
	}{
		{MsgNewMessages, [2]string{"%d new message", "%d mensaje nuevo"}, [2]string{"%d new messages", "%d mensajes nuevos"}},
		{MsgComments, [2]string{"%d comment", "%d comentario"}, [2]string{"%d comments", "%d comentarios"}},
		{MsgFollowers, [2]string{"%d follower", "%d seguidor"}, [2]string{"%d followers", "%d seguidores"}},
	}
	for _, p := range plurals {
		for i, tag := range []language.Tag{en, es} {
			_ = message.Set(tag, p.key, plural.Selectf(1, "%d",
				plural.One, p.one[i],
				plural.Other, p.other[i],
			))
		}
	}
}

// Match picks the supported locale closest to pref. POSIX forms such as
// "es_ES.UTF-8" are accepted.
func Match(pref string) language.Tag {
	pref = normalize(pref)
	if pref == "" {
		return Supported[0]
	}
	tags, _, err := language.ParseAcceptLanguage(pref)
	if err != nil || len(tags) == 0 {
		return Supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return Supported[idx]
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	if s == "C" || s == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(s, "_", "-")
}

// Detect reads the locale from the environment the way POSIX tools do.
func Detect() string {
	for _, k := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := normalize(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// Printer formats translated messages for one locale.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// NewPrinter returns a printer for locale, or for the environment's locale
// when locale is empty.
func NewPrinter(locale string) *Printer {
	if locale == "" {
		locale = Detect()
	}
	tag := Match(locale)
	return &Printer{tag: tag, p: message.NewPrinter(tag)}
}

func (p *Printer) Tag() language.Tag { return p.tag }

func (p *Printer) Sprintf(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}
