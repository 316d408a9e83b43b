// Package docs provides generated OpenAPI documentation.
//
// Spellbook API
//
//	@title			Spellbook API
//	@version		1.0
//	@description	Prompt formula composer: browse formulas, fill their tags with snippets and hand the prompt to an image app.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/spellbook
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/spellbook/serve.go -o ./swagger --parseDependency --parseInternal
