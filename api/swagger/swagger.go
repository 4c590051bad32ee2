package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Timetable core: slot and room catalogs, schedule assignment with conflict detection, conflict ledger, templates and change history",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "TimeSlots", "description": "Time-slot catalog"},
        {"name": "Rooms", "description": "Room catalog"},
        {"name": "Schedules", "description": "Schedule containers and change history"},
        {"name": "Entries", "description": "Schedule entry assignment"},
        {"name": "Conflicts", "description": "Conflict ledger"},
        {"name": "Templates", "description": "Reusable assignment patterns"},
        {"name": "Notifications", "description": "Stakeholder notifications"}
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
        "/time-slots": {
            "get": {
                "tags": ["TimeSlots"],
                "summary": "List time slots",
                "parameters": [
                    {"name": "dayOfWeek", "in": "query", "type": "string"},
                    {"name": "activeOnly", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["TimeSlots"],
                "summary": "Create time slot",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTimeSlotRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/time-slots/{id}": {
            "get": {
                "tags": ["TimeSlots"],
                "summary": "Get time slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["TimeSlots"],
                "summary": "Deactivate time slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/rooms": {
            "get": {
                "tags": ["Rooms"],
                "summary": "List rooms",
                "parameters": [
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "building", "in": "query", "type": "string"},
                    {"name": "activeOnly", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Rooms"],
                "summary": "Create room",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRoomRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rooms/{id}": {
            "get": {
                "tags": ["Rooms"],
                "summary": "Get room",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Rooms"],
                "summary": "Update room",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateRoomRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Rooms"],
                "summary": "Deactivate room",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedules",
                "parameters": [
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "academicYearId", "in": "query", "type": "string"},
                    {"name": "activeOnly", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schedules"],
                "summary": "Create schedule",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Get schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Schedules"],
                "summary": "Update schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Schedules"],
                "summary": "Deactivate schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/schedules/{id}/entries": {
            "get": {
                "tags": ["Entries"],
                "summary": "List active entries",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "roomId", "in": "query", "type": "string"},
                    {"name": "timeSlotId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/conflicts": {
            "get": {
                "tags": ["Conflicts"],
                "summary": "List a schedule's conflict ledger",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "unresolvedOnly", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/changes": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List change history",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/entries": {
            "post": {
                "tags": ["Entries"],
                "summary": "Create schedule entry",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEntryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/entries/{id}": {
            "put": {
                "tags": ["Entries"],
                "summary": "Update schedule entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Entries"],
                "summary": "Deactivate schedule entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/entries/{id}/changes": {
            "get": {
                "tags": ["Entries"],
                "summary": "List an entry's audit trail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conflicts": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Record conflict manually",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordConflictRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conflicts/{id}/resolve": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Resolve conflict",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveConflictRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/templates": {
            "get": {
                "tags": ["Templates"],
                "summary": "List templates",
                "parameters": [
                    {"name": "activeOnly", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Templates"],
                "summary": "Create template",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTemplateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/templates/{id}": {
            "get": {
                "tags": ["Templates"],
                "summary": "Get template with entries",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Templates"],
                "summary": "Deactivate template",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/templates/{id}/entries": {
            "post": {
                "tags": ["Templates"],
                "summary": "Add template entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddTemplateEntryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/templates/{id}/apply": {
            "post": {
                "tags": ["Templates"],
                "summary": "Apply template to a schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyTemplateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List the caller's notifications",
                "parameters": [
                    {"name": "unreadOnly", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/{id}/read": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark notification as read",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        }
    },
    "definitions": {
        "CreateTimeSlotRequest": {
            "type": "object",
            "properties": {
                "day_of_week": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"}
            },
            "required": ["day_of_week", "start_time", "end_time"]
        },
        "CreateRoomRequest": {
            "type": "object",
            "properties": {
                "number": {"type": "string"},
                "type": {"type": "string"},
                "capacity": {"type": "integer"},
                "building": {"type": "string"},
                "floor": {"type": "integer"}
            },
            "required": ["number", "type", "capacity"]
        },
        "UpdateRoomRequest": {
            "type": "object",
            "properties": {
                "number": {"type": "string"},
                "type": {"type": "string"},
                "capacity": {"type": "integer"},
                "building": {"type": "string"},
                "floor": {"type": "integer"}
            }
        },
        "CreateScheduleRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "type": {"type": "string"},
                "academic_year_id": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"}
            },
            "required": ["name", "type", "academic_year_id", "start_date", "end_date"]
        },
        "UpdateScheduleRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "type": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"}
            }
        },
        "CreateEntryRequest": {
            "type": "object",
            "properties": {
                "schedule_id": {"type": "string"},
                "class_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "room_id": {"type": "string"},
                "time_slot_id": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["schedule_id", "class_id", "subject_id", "teacher_id", "room_id", "time_slot_id"]
        },
        "UpdateEntryRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "room_id": {"type": "string"},
                "time_slot_id": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["class_id", "subject_id", "teacher_id", "room_id", "time_slot_id"]
        },
        "RecordConflictRequest": {
            "type": "object",
            "properties": {
                "schedule_id": {"type": "string"},
                "conflict_type": {"type": "string"},
                "entry_a_id": {"type": "string"},
                "entry_b_id": {"type": "string"},
                "description": {"type": "string"}
            },
            "required": ["schedule_id", "conflict_type", "entry_a_id", "entry_b_id"]
        },
        "ResolveConflictRequest": {
            "type": "object",
            "properties": {
                "note": {"type": "string"}
            }
        },
        "CreateTemplateRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"}
            },
            "required": ["name"]
        },
        "AddTemplateEntryRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "room_id": {"type": "string"},
                "time_slot_id": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["class_id", "subject_id", "teacher_id", "room_id", "time_slot_id"]
        },
        "ApplyTemplateRequest": {
            "type": "object",
            "properties": {
                "schedule_id": {"type": "string"}
            },
            "required": ["schedule_id"]
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
