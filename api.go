package assetcache

// Options tune the Manager. Every field is optional.
type Options struct {
	Logger     Logger   // if nil, NopLogger is used
	Hooks      Hooks    // if nil, NopHooks is used
	Strategy   Strategy // nil => DefaultStrategy{Order: DefaultClassOrder}
	MaxWorkers int      // 0 => unbounded worker pool
}

// New builds an empty Manager. Register backends before use.
func New(opts Options) (*Manager, error) {
	return newManager(opts)
}
