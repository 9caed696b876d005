package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "Tadasupo Case Backend",
    "description": "Support case intake, assignment, rounds, mail threads and administration",
    "version": "1.0"
  },
  "basePath": "/",
  "securityDefinitions": {
    "bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
  },
  "security": [{"bearer": []}],
  "paths": {
    "/healthz": {"get": {"tags": ["system"], "summary": "Health check", "responses": {"200": {"description": "ok"}, "503": {"description": "row store unavailable"}}}},
    "/api/initial-data": {"get": {"tags": ["cases"], "summary": "Caller, joined cases and master data", "responses": {"200": {"description": "ok"}}}},
    "/api/cases": {"get": {"tags": ["cases"], "summary": "List cases newest first", "responses": {"200": {"description": "ok"}}}},
    "/api/cases/{id}/assign": {"post": {"tags": ["cases"], "summary": "Assign a case to the caller, optionally sending the initial mail", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}, "403": {"description": "assigned to someone else"}, "404": {"description": "unknown case"}}}},
    "/api/cases/{id}/decline": {"post": {"tags": ["cases"], "summary": "Decline a case and send the decline mail", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}, "502": {"description": "status committed, mail failed"}}}},
    "/api/cases/{id}/reopen": {"post": {"tags": ["cases"], "summary": "Archive the current round and start the next", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}, "422": {"description": "support limit reached"}}}},
    "/api/cases/{id}/record": {"put": {"tags": ["cases"], "summary": "Update the current round, attachments and meeting", "consumes": ["application/json", "multipart/form-data"], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}, "422": {"description": "more than 5 attachments"}}}},
    "/api/cases/{id}/emails": {"post": {"tags": ["mail"], "summary": "Send a new mail or reply within a case thread", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}}}},
    "/api/cases/{id}/threads": {"get": {"tags": ["mail"], "summary": "Mail threads of a case", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}}}},
    "/api/admin/panel": {"get": {"tags": ["admin"], "summary": "Staff, settings and recent audit log", "responses": {"200": {"description": "ok"}, "403": {"description": "admin only"}}}},
    "/api/admin/staff": {"put": {"tags": ["admin"], "summary": "Create or update staff", "responses": {"200": {"description": "ok"}}}},
    "/api/admin/staff/{email}": {"delete": {"tags": ["admin"], "summary": "Deactivate staff", "parameters": [{"name": "email", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}}}},
    "/api/admin/settings": {"patch": {"tags": ["admin"], "summary": "Update editable settings", "responses": {"200": {"description": "ok"}}}},
    "/api/admin/cases/{id}/status": {"put": {"tags": ["admin"], "summary": "Force a case status", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}}}},
    "/api/admin/cases/{id}": {"patch": {"tags": ["admin"], "summary": "Correct case and record data", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}}}},
    "/api/admin/cases/{id}/reassign": {"post": {"tags": ["admin"], "summary": "Reassign a case to an active staff member", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}}}}
  }
}`

func init() {
	swag.Register(swag.Name, &s{})
}

type s struct{}

func (s *s) ReadDoc() string {
	return docTemplate
}
