package repository

import (
	"sync"
	"sync/atomic"

	"gorm.io/gorm"
)

// Factory builds the repositories for one database handle on first use.
type Factory struct {
	db    *gorm.DB
	once  sync.Once
	repos *Repositories
}

func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

func (f *Factory) Repositories() *Repositories {
	f.once.Do(func() {
		if f.repos == nil {
			f.repos = NewRepositories(f.db)
		}
	})
	return f.repos
}

var global atomic.Pointer[Factory]

// InitializeFactory installs the process-wide factory. Later calls are no-ops.
func InitializeFactory(db *gorm.DB) {
	global.CompareAndSwap(nil, NewFactory(db))
}

// InitializeFactoryWith replaces the process-wide factory with prebuilt
// repositories. Tests use it to install fakes.
func InitializeFactoryWith(repos *Repositories) {
	global.Store(&Factory{repos: repos})
}

func GetGlobalFactory() *Factory {
	f := global.Load()
	if f == nil {
		panic("repository: InitializeFactory has not been called")
	}
	return f
}

func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().Repositories()
}
