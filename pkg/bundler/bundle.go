package bundler

type BundleModule struct {
	Name             string
	Code             string
	SourceURL        string
	SourceMappingURL string
}

// Bundle is the materialized code for a set of modules, in application order.
type Bundle struct {
	Modules []BundleModule
}

func (b *Bundle) IsEmpty() bool {
	return b == nil || len(b.Modules) == 0
}

func (b *Bundle) SourceURLs() []string {
	urls := make([]string, 0, len(b.Modules))
	for _, m := range b.Modules {
		urls = append(urls, m.SourceURL)
	}
	return urls
}

func (b *Bundle) SourceMappingURLs() []string {
	urls := make([]string, 0, len(b.Modules))
	for _, m := range b.Modules {
		urls = append(urls, m.SourceMappingURL)
	}
	return urls
}
