package metadata

import "github.com/marmos91/dittostore/pkg/observer"

// Source is the observer.Action source used by all metadata backends.
const Source = "metadata"

// Inform publishes a metadata action for the given ids on n.
// A nil notifier is treated as the null notifier.
func Inform(n observer.Notifier, t observer.ActionType, message string, ids ...string) {
	observer.OrNop(n).Inform(observer.Action{
		Type:    t,
		Source:  Source,
		Objects: ids,
		Message: message,
	})
}
