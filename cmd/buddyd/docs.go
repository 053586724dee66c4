package main

// General API documentation for swaggo. Regenerate docs/ with
// `swag init -g cmd/buddyd/docs.go -o docs` after changing handler annotations.
//
// @title           buddyd API
// @version         1.0
// @description     Supervises local model servers (chat, image, tts, stt) for a desktop assistant.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
