package bus

import "github.com/mandel59/comunica/pkg/core"

// Construction errors for the indexed bus. Both are configuration errors:
// an indexed bus without extractors cannot route anything.
var (
	ErrNoActorIdentifier  = core.NewError("BUS_NO_ACTOR_IDENTIFIER", "indexed bus requires an actor identifier extractor")
	ErrNoActionIdentifier = core.NewError("BUS_NO_ACTION_IDENTIFIER", "indexed bus requires an action identifier extractor")
)
