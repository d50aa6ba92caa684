package app

import (
	"github.com/vk/phasegrid/internal/registry"
	"github.com/vk/phasegrid/modules/emit"
	"github.com/vk/phasegrid/modules/tally"
	"github.com/vk/phasegrid/modules/tokenize"
)

// coreModules is the definitive list of stage modules compiled into the
// phasegrid binary.
var coreModules = []registry.Module{
	&tokenize.Module{},
	&tally.Module{},
	&emit.Module{},
}
