package builtins

import (
	"github.com/copybara/copybara/internal/loader"
)

// Modules returns fresh instances of every standard module for one load
func Modules() []loader.Module {
	return []loader.Module{
		CoreModule{},
		AuthoringModule{},
		MetadataModule{},
		NewFolderModule(),
	}
}
