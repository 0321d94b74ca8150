package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Assessment Publish API",
        "description": "Mark-table lock, publish-window and approval workflow engine",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and token lifecycle"},
        {"name": "MarkTableLock", "description": "Per-assignment lock status and transitions"},
        {"name": "PublishWindow", "description": "Publish window resolution and publishing"},
        {"name": "EditWindow", "description": "Edit window resolution and edit sessions"},
        {"name": "Approvals", "description": "Publish and edit exception workflow"},
        {"name": "IQAC", "description": "Oversight operations and reset notifications"}
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
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unavailable"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "Tokens rotated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/mark-table-lock/{assessment}/{subjectId}": {
            "get": {
                "tags": ["MarkTableLock"],
                "summary": "Resolve lock status",
                "parameters": [
                    {"name": "assessment", "in": "path", "type": "string", "required": true},
                    {"name": "subjectId", "in": "path", "type": "string", "required": true},
                    {"name": "semester", "in": "query", "type": "string"},
                    {"name": "staffId", "in": "query", "type": "string"},
                    {"name": "section", "in": "query", "type": "string"},
                    {"name": "teachingAssignmentId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Lock status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/mark-table-lock/{assessment}/{subjectId}/confirm-mark-manager": {
            "post": {
                "tags": ["MarkTableLock"],
                "summary": "Confirm mark manager configuration",
                "parameters": [
                    {"name": "assessment", "in": "path", "type": "string", "required": true},
                    {"name": "subjectId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Lock latched", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/publish-window/{assessment}/{subjectId}": {
            "get": {
                "tags": ["PublishWindow"],
                "summary": "Resolve the publish window",
                "parameters": [
                    {"name": "assessment", "in": "path", "type": "string", "required": true},
                    {"name": "subjectId", "in": "path", "type": "string", "required": true},
                    {"name": "semester", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Window decision", "schema": {"$ref": "#/definitions/WindowDecision"}}
                }
            },
            "post": {
                "tags": ["PublishWindow"],
                "summary": "Publish an assessment",
                "responses": {
                    "200": {"description": "Published", "schema": {"$ref": "#/definitions/WindowDecision"}},
                    "403": {"description": "Page disabled"},
                    "409": {"description": "Publish window closed"}
                }
            }
        },
        "/edit-window/{assessment}/{subjectId}": {
            "get": {
                "tags": ["EditWindow"],
                "summary": "Resolve the edit window",
                "parameters": [
                    {"name": "assessment", "in": "path", "type": "string", "required": true},
                    {"name": "subjectId", "in": "path", "type": "string", "required": true},
                    {"name": "semester", "in": "query", "type": "string", "required": true},
                    {"name": "scope", "in": "query", "type": "string", "enum": ["MARK_ENTRY", "MARK_MANAGER"]}
                ],
                "responses": {
                    "200": {"description": "Window decision", "schema": {"$ref": "#/definitions/WindowDecision"}}
                }
            },
            "post": {
                "tags": ["EditWindow"],
                "summary": "Begin an edit session",
                "responses": {
                    "200": {"description": "Edit allowed", "schema": {"$ref": "#/definitions/WindowDecision"}},
                    "409": {"description": "Edit window closed"}
                }
            }
        },
        "/publish-request": {
            "post": {
                "tags": ["Approvals"],
                "summary": "File a publish exception request",
                "responses": {
                    "201": {"description": "Request filed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/publish-requests/pending": {
            "get": {
                "tags": ["Approvals"],
                "summary": "List pending publish requests",
                "responses": {
                    "200": {"description": "Pending requests", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/publish-requests/{id}/approve": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Approve a pending request",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already reviewed"}
                }
            }
        },
        "/edit-request": {
            "post": {
                "tags": ["Approvals"],
                "summary": "File an edit exception request",
                "responses": {
                    "201": {"description": "Request filed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/edit-requests/department/pending": {
            "get": {
                "tags": ["Approvals"],
                "summary": "List requests awaiting departmental pre-approval",
                "responses": {
                    "200": {"description": "Pending requests", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/iqac/reset/{assessment}/{subjectId}": {
            "post": {
                "tags": ["IQAC"],
                "summary": "Reset a published assignment",
                "responses": {
                    "200": {"description": "Reset applied", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/iqac/reset-notifications": {
            "get": {
                "tags": ["IQAC"],
                "summary": "List unread reset notifications",
                "responses": {
                    "200": {"description": "Unread notifications", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "WindowDecision": {
            "type": "object",
            "properties": {
                "enabled": {"type": "boolean"},
                "open": {"type": "boolean"},
                "may_publish": {"type": "boolean"},
                "reason": {"type": "string"},
                "checked_at": {"type": "string", "format": "date-time"}
            }
        },
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
