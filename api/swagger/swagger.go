package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Ceremonia API",
        "description": "Graduation ceremony attendance and seat lookup service",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Students", "description": "Roster and seat lookup"},
        {"name": "Attendance", "description": "Marking, listing, export and live events"},
        {"name": "Sheets", "description": "Ceremony administration"}
    ],
    "paths": {
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List the ceremony roster",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string", "description": "Ceremony date YYYY-MM-DD, defaults to today"},
                    {"name": "ceremony", "in": "query", "type": "string", "description": "Ceremony letter when a date has several"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No ceremony scheduled"}
                }
            }
        },
        "/students/{code}": {
            "get": {
                "tags": ["Students"],
                "summary": "Look a student up by code",
                "parameters": [
                    {"name": "code", "in": "path", "type": "string", "required": true},
                    {"name": "date", "in": "query", "type": "string"},
                    {"name": "ceremony", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student or ceremony not found"}
                }
            }
        },
        "/attendance": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List marked attendance",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string"},
                    {"name": "ceremony", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Attendance"],
                "summary": "Mark a student present",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MarkAttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Marked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload"},
                    "403": {"description": "Ceremony inactive"},
                    "404": {"description": "Student or ceremony not found"},
                    "500": {"description": "Write failed after retries"}
                }
            }
        },
        "/attendance/export": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Export attendance as CSV or PDF",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string"},
                    {"name": "ceremony", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "description": "csv (default) or pdf"}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        },
        "/attendance/events": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Subscribe to live attendance events (SSE)",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string"},
                    {"name": "ceremony", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "text/event-stream"}
                }
            }
        },
        "/sheets": {
            "get": {
                "tags": ["Sheets"],
                "summary": "List workbook ceremonies",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sheets/set-state": {
            "post": {
                "tags": ["Sheets"],
                "summary": "Activate or deactivate a ceremony",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetSheetStateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No ceremony scheduled"}
                }
            }
        }
    },
    "definitions": {
        "MarkAttendanceRequest": {
            "type": "object",
            "required": ["code"],
            "properties": {
                "code": {"type": "string"},
                "date": {"type": "string"},
                "ceremony": {"type": "string"}
            }
        },
        "SetSheetStateRequest": {
            "type": "object",
            "required": ["date", "active"],
            "properties": {
                "date": {"type": "string"},
                "ceremony": {"type": "string"},
                "active": {"type": "boolean"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
