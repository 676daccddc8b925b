// Package docs registra la definición OpenAPI que sirve /swagger/*.
// Se regenera con: swag init -g cmd/api/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/pets": {
            "post": {"tags": ["pets"], "summary": "Registrar mascota", "responses": {"201": {"description": "Created"}}},
            "get": {"tags": ["pets"], "summary": "Listar mis mascotas", "responses": {"200": {"description": "OK"}}}
        },
        "/pets/{petID}": {
            "get": {"tags": ["pets"], "summary": "Ver mascota", "parameters": [{"type": "string", "name": "petID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/pets/{petID}/appointments": {
            "post": {"tags": ["appointments"], "summary": "Reservar turno para mi mascota", "parameters": [{"type": "string", "name": "petID", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}, "422": {"description": "Slot not offered"}, "429": {"description": "Too Many Requests"}}}
        },
        "/vets/me/availability": {
            "put": {"tags": ["availability"], "summary": "Publicar disponibilidad del vet", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/vets/{vetID}/availability": {
            "get": {"tags": ["availability"], "summary": "Ver disponibilidad publicada de un vet", "parameters": [{"type": "string", "name": "vetID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/vets/{vetID}/slots": {
            "get": {"tags": ["slots"], "summary": "Slots libres de un vet", "parameters": [{"type": "string", "name": "vetID", "in": "path", "required": true}, {"type": "string", "name": "from", "in": "query"}], "responses": {"200": {"description": "OK"}}}
        },
        "/vets/me/appointments": {
            "get": {"tags": ["appointments"], "summary": "Listar turnos del vet", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["appointments"], "summary": "Cargar turno como vet", "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}
        },
        "/me/appointments": {
            "get": {"tags": ["appointments"], "summary": "Listar mis turnos", "responses": {"200": {"description": "OK"}}}
        },
        "/appointments/{appointmentID}": {
            "get": {"tags": ["appointments"], "summary": "Ver turno", "parameters": [{"type": "string", "name": "appointmentID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "patch": {"tags": ["appointments"], "summary": "Reprogramar turno", "parameters": [{"type": "string", "name": "appointmentID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/appointments/{appointmentID}/cancel": {
            "post": {"tags": ["appointments"], "summary": "Cancelar turno", "parameters": [{"type": "string", "name": "appointmentID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Vet Scheduling API",
	Description:      "Disponibilidad de veterinarios y reserva de turnos.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
