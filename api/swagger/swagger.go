package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Staffing API",
        "description": "Shift lifecycle and settlement engine for temp staffing",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session"},
        {"name": "Projects", "description": "Client projects owning shifts"},
        {"name": "Shifts", "description": "Shift scheduling and capacity"},
        {"name": "Applications", "description": "Staff applications and approval"},
        {"name": "Attendance", "description": "Clock-in/out and review"},
        {"name": "Payments", "description": "Settlement and payment ledger"},
        {"name": "Availability", "description": "Staff availability calendar"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate by email and password",
                "responses": {
                    "200": {"description": "Token issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/projects": {
            "get": {
                "tags": ["Projects"],
                "summary": "List projects",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Projects"],
                "summary": "Create project",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/shifts": {
            "get": {
                "tags": ["Shifts"],
                "summary": "List shifts with remaining capacity",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Shifts"],
                "summary": "Create shift",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/applications": {
            "get": {
                "tags": ["Applications"],
                "summary": "List applications",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Applications"],
                "summary": "Apply to a shift",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Duplicate or closed shift"}
                }
            }
        },
        "/applications/{id}/approve": {
            "post": {
                "tags": ["Applications"],
                "summary": "Approve against remaining capacity",
                "responses": {
                    "200": {"description": "Approved"},
                    "409": {"description": "Capacity exhausted or invalid state"}
                }
            }
        },
        "/attendances/clock-in": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Clock in for an approved application",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Already clocked in or not approved"}
                }
            }
        },
        "/attendances/{id}/clock-out": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Clock out and compute work hours",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Clock-out not after clock-in"}
                }
            }
        },
        "/payments/generate": {
            "post": {
                "tags": ["Payments"],
                "summary": "Aggregate approved attendance into a payment",
                "responses": {
                    "201": {"description": "Created"},
                    "422": {"description": "No eligible attendance or negative total"}
                }
            }
        },
        "/payments/{id}/statement": {
            "get": {
                "tags": ["Payments"],
                "summary": "Export statement as CSV or PDF",
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "List availability calendar",
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "put": {
                "tags": ["Availability"],
                "summary": "Mark availability for one date",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
