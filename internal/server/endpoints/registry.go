package endpoints

import (
	"github.com/glueous/reader/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Enrichment commands
		&SetEnrichmentEndpoint{Enable: true},
		&SetEnrichmentEndpoint{Enable: false},
		&ToggleEnrichmentEndpoint{},
		&RerunPageEndpoint{},
		&RerunDocumentEndpoint{},
		&TickEndpoint{},
		&DebugEndpoint{},

		// Document endpoints
		&OpenDocumentEndpoint{},
		&GetDocumentEndpoint{},
		&CloseDocumentEndpoint{},

		// View endpoints
		&GetViewEndpoint{},
		&SetViewEndpoint{},

		// Page endpoints
		&PageTextEndpoint{},
		&PageSpansEndpoint{},

		// Cache endpoints
		&ListCacheEndpoint{},
		&ClearCacheEndpoint{},

		// Metrics endpoints
		&MetricsEndpoint{},
	}
}

// EnrichmentCommands returns endpoints grouped under "enrichment".
func EnrichmentCommands() []api.Endpoint {
	return []api.Endpoint{
		&SetEnrichmentEndpoint{Enable: true},
		&SetEnrichmentEndpoint{Enable: false},
		&ToggleEnrichmentEndpoint{},
		&RerunPageEndpoint{},
		&RerunDocumentEndpoint{},
		&TickEndpoint{},
	}
}

// DocumentCommands returns endpoints grouped under "documents".
func DocumentCommands() []api.Endpoint {
	return []api.Endpoint{
		&OpenDocumentEndpoint{},
		&GetDocumentEndpoint{},
		&CloseDocumentEndpoint{},
	}
}

// ViewCommands returns endpoints grouped under "view".
func ViewCommands() []api.Endpoint {
	return []api.Endpoint{
		&GetViewEndpoint{},
		&SetViewEndpoint{},
	}
}

// PageCommands returns endpoints grouped under "pages".
func PageCommands() []api.Endpoint {
	return []api.Endpoint{
		&PageTextEndpoint{},
		&PageSpansEndpoint{},
	}
}

// CacheCommands returns endpoints grouped under "cache".
func CacheCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListCacheEndpoint{},
		&ClearCacheEndpoint{},
	}
}
