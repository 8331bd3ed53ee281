package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           droidscope control API
// @version         1.0
// @description     Start and stop log monitoring sessions and edit webhook settings.
//
// @contact.name   droidscope maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
