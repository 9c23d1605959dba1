// Package docs provides generated OpenAPI documentation.
//
// Glueous API
//
//	@title			Glueous API
//	@version		1.0
//	@description	Control API of the Glueous reader: documents, viewport and incremental OCR enrichment.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http
package docs

//go:generate swag init -g ../cmd/glueous/serve.go -o ./swagger --parseDependency --parseInternal
