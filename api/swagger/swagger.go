package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Session scheduling, joint classes, curriculum progress and week propagation.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Sessions", "description": "Class and exam sessions, joint groups and week propagation"},
        {"name": "Progress", "description": "Curriculum progress, eligibility and completion overrides"},
        {"name": "Subjects", "description": "Joint-class and teacher lookups"},
        {"name": "Classes", "description": "Class catalog"},
        {"name": "Teachers", "description": "Teacher lookups"},
        {"name": "Holidays", "description": "Dates that block scheduling"},
        {"name": "System", "description": "Health and metrics"}
    ],
    "paths": {
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions",
                "description": "Sessions annotated with their effective status and learning progress.",
                "parameters": [
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "class_id", "in": "query", "type": "string"},
                    {"name": "teacher_id", "in": "query", "type": "string"},
                    {"name": "room_id", "in": "query", "type": "string"},
                    {"name": "subject_id", "in": "query", "type": "string"},
                    {"name": "kind", "in": "query", "type": "string", "enum": ["CLASS", "EXAM"]}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Create session",
                "description": "Shared subjects fan out to selectedSharedClasses as one joint group. Class sessions are shortened to the remaining curriculum periods and reported under meta.clamped.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict or holiday", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Subject not eligible", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}": {
            "patch": {
                "tags": ["Sessions"],
                "summary": "Update session",
                "description": "Group-level fields apply to every session of the joint group. The note applies to the addressed session only.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Sessions"],
                "summary": "Delete session and its joint group",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/status": {
            "patch": {
                "tags": ["Sessions"],
                "summary": "Change session status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSessionStatusRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/sessions/{id}/siblings": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List joint group members",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/sessions/propagate": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Continue a week into the next one",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PropagateRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/progress": {
            "get": {
                "tags": ["Progress"],
                "summary": "Learning progress of a subject for a class",
                "parameters": [
                    {"name": "subject_id", "in": "query", "required": true, "type": "string"},
                    {"name": "class_id", "in": "query", "required": true, "type": "string"},
                    {"name": "group", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classes/{id}/eligible-subjects": {
            "get": {
                "tags": ["Progress"],
                "summary": "Subjects selectable for a class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "kind", "in": "query", "type": "string", "enum": ["CLASS", "EXAM"]},
                    {"name": "group", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/subjects/{id}/shared-classes": {
            "get": {
                "tags": ["Subjects"],
                "summary": "Classes a subject can be jointly taught to",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "class_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/subjects/{id}/teachers": {
            "get": {
                "tags": ["Subjects"],
                "summary": "Responsible teachers of a subject",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/subjects": {
            "get": {
                "tags": ["Subjects"],
                "summary": "List subjects",
                "parameters": [{"name": "major", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/subjects/{id}": {
            "get": {
                "tags": ["Subjects"],
                "summary": "Get subject by id",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classes": {
            "get": {
                "tags": ["Classes"],
                "summary": "List classes",
                "parameters": [{"name": "major", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classes/{id}": {
            "get": {
                "tags": ["Classes"],
                "summary": "Get class by id",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/teachers/{id}": {
            "get": {
                "tags": ["Teachers"],
                "summary": "Get teacher by id",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/holidays": {
            "get": {
                "tags": ["Holidays"],
                "summary": "List holidays",
                "parameters": [
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Holidays"],
                "summary": "Register holiday",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateHolidayRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/holidays/{id}": {
            "delete": {
                "tags": ["Holidays"],
                "summary": "Remove holiday",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/completion-overrides": {
            "get": {
                "tags": ["Progress"],
                "summary": "Get completion override",
                "parameters": [
                    {"name": "subject_id", "in": "query", "required": true, "type": "string"},
                    {"name": "class_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Progress"],
                "summary": "Write completion override",
                "description": "expectedVersion must equal the stored version, 0 when none exists.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetCompletionOverrideRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Stale version", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["System"],
                "summary": "Timetable metrics summary",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "CreateSessionRequest": {
            "type": "object",
            "required": ["kind", "teacherId", "subjectId", "classId", "roomId", "date", "startPeriod", "periodCount"],
            "properties": {
                "kind": {"type": "string", "enum": ["CLASS", "EXAM"]},
                "teacherId": {"type": "string"},
                "subjectId": {"type": "string"},
                "classId": {"type": "string"},
                "roomId": {"type": "string"},
                "group": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "startPeriod": {"type": "integer", "minimum": 1, "maximum": 10},
                "periodCount": {"type": "integer", "minimum": 1, "maximum": 5},
                "note": {"type": "string"},
                "selectedSharedClasses": {"type": "array", "items": {"type": "string"}}
            }
        },
        "UpdateSessionRequest": {
            "type": "object",
            "properties": {
                "teacherId": {"type": "string"},
                "roomId": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "startPeriod": {"type": "integer", "minimum": 1, "maximum": 10},
                "periodCount": {"type": "integer", "minimum": 1, "maximum": 5},
                "status": {"type": "string", "enum": ["PENDING", "ONGOING", "COMPLETED", "OFF", "MAKEUP"]},
                "note": {"type": "string"}
            }
        },
        "UpdateSessionStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["PENDING", "ONGOING", "COMPLETED", "OFF", "MAKEUP"]}
            }
        },
        "PropagateRequest": {
            "type": "object",
            "required": ["weekStart"],
            "properties": {
                "weekStart": {"type": "string", "format": "date"}
            }
        },
        "CreateHolidayRequest": {
            "type": "object",
            "required": ["name", "startDate", "endDate"],
            "properties": {
                "name": {"type": "string"},
                "startDate": {"type": "string", "format": "date"},
                "endDate": {"type": "string", "format": "date"}
            }
        },
        "SetCompletionOverrideRequest": {
            "type": "object",
            "required": ["subjectId", "classId"],
            "properties": {
                "subjectId": {"type": "string"},
                "classId": {"type": "string"},
                "manualCompleted": {"type": "boolean"},
                "paidCompleted": {"type": "boolean"},
                "statusOverride": {"type": "string", "enum": ["completed"]},
                "meta": {"type": "object"},
                "expectedVersion": {"type": "integer", "minimum": 0},
                "updatedBy": {"type": "string"}
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
