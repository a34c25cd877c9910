package app

import (
	"github.com/vk/teeio-validator/internal/registry"
	"github.com/vk/teeio-validator/modules/cxl_ide"
	"github.com/vk/teeio-validator/modules/cxl_tsp"
	"github.com/vk/teeio-validator/modules/pcie_ide"
	"github.com/vk/teeio-validator/modules/spdm"
	"github.com/vk/teeio-validator/modules/tdisp"
)

// coreModules is the definitive list of all categories that are compiled
// into the validator binary.
var coreModules = []registry.Module{
	&cxl_ide.Module{},
	&cxl_tsp.Module{},
	&spdm.Module{},
	&pcie_ide.Module{},
	&tdisp.Module{},
}
