// Package docs registers the OpenAPI description served at /swagger.
//
// The template follows the layout produced by swag; regenerate it with
// `swag init -g internal/http/router.go -o internal/http/docs` after changing
// handler annotations.
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
        "/agents": {
            "post": {"tags": ["Agents"], "summary": "Create an agent", "operationId": "createAgent",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateAgentRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"$ref": "#/responses/error"}}}
        },
        "/agents/{agentId}": {
            "get": {"tags": ["Agents"], "summary": "Get an agent", "operationId": "getAgent",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"$ref": "#/parameters/agentId"}],
                "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/responses/error"}}}
        },
        "/agents/{agentId}/intents": {
            "get": {"tags": ["Intents"], "summary": "List an agent's intents", "operationId": "listIntents",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"$ref": "#/parameters/agentId"}],
                "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/responses/error"}}},
            "post": {"tags": ["Intents"], "summary": "Create an intent", "operationId": "createIntent",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"$ref": "#/parameters/agentId"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.IntentRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"$ref": "#/responses/error"}, "409": {"$ref": "#/responses/error"}}}
        },
        "/agents/{agentId}/intents/detect": {
            "post": {"tags": ["Intents"], "summary": "Dry-run intent matching", "operationId": "detectIntent",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"$ref": "#/parameters/agentId"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.DetectRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/error"}}}
        },
        "/agents/{agentId}/intents/{intentId}": {
            "get": {"tags": ["Intents"], "summary": "Get an intent", "operationId": "getIntent",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"$ref": "#/parameters/agentId"}, {"$ref": "#/parameters/intentId"}],
                "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/responses/error"}}},
            "put": {"tags": ["Intents"], "summary": "Replace an intent", "operationId": "updateIntent",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"$ref": "#/parameters/agentId"}, {"$ref": "#/parameters/intentId"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.IntentRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/error"}, "404": {"$ref": "#/responses/error"}}},
            "delete": {"tags": ["Intents"], "summary": "Delete an intent", "operationId": "deleteIntent",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"$ref": "#/parameters/agentId"}, {"$ref": "#/parameters/intentId"}],
                "responses": {"204": {"description": "No Content"}, "404": {"$ref": "#/responses/error"}}}
        },
        "/agents/{agentId}/intents/{intentId}/toggle": {
            "patch": {"tags": ["Intents"], "summary": "Enable or disable an intent", "operationId": "toggleIntent",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"$ref": "#/parameters/agentId"}, {"$ref": "#/parameters/intentId"}],
                "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/responses/error"}}}
        },
        "/agents/{agentId}/intents/{intentId}/runs": {
            "get": {"tags": ["Intents"], "summary": "Recent executions of an intent", "operationId": "listIntentRuns",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"$ref": "#/parameters/agentId"}, {"$ref": "#/parameters/intentId"}, {"in": "query", "name": "limit", "type": "integer"}],
                "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/responses/error"}}}
        },
        "/agents/{agentId}/channels": {
            "get": {"tags": ["Channels"], "summary": "List an agent's channels", "operationId": "listChannels",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"$ref": "#/parameters/agentId"}],
                "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/responses/error"}}},
            "post": {"tags": ["Channels"], "summary": "Connect a channel to an agent", "operationId": "createChannel",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"$ref": "#/parameters/agentId"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ChannelRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"$ref": "#/responses/error"}, "409": {"$ref": "#/responses/error"}}}
        },
        "/agents/{agentId}/channels/{channelId}": {
            "put": {"tags": ["Channels"], "summary": "Update a channel", "operationId": "updateChannel",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"$ref": "#/parameters/agentId"}, {"in": "path", "name": "channelId", "required": true, "type": "string", "format": "uuid"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ChannelRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/error"}, "404": {"$ref": "#/responses/error"}}}
        },
        "/agents/{agentId}/conversations": {
            "get": {"tags": ["Conversations"], "summary": "List an agent's conversations (paginated)", "operationId": "listConversations",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"$ref": "#/parameters/agentId"}, {"in": "query", "name": "status", "type": "string", "enum": ["BOT", "OPEN", "CLOSED"]}, {"$ref": "#/parameters/page"}, {"$ref": "#/parameters/pageSize"}],
                "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/error"}}}
        },
        "/conversations/{id}/messages": {
            "get": {"tags": ["Conversations"], "summary": "List a conversation's messages (paginated)", "operationId": "listConversationMessages",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"in": "header", "name": "If-None-Match", "type": "string"}, {"in": "path", "name": "id", "required": true, "type": "string", "format": "uuid"}, {"$ref": "#/parameters/page"}, {"$ref": "#/parameters/pageSize"}],
                "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}, "404": {"$ref": "#/responses/error"}}}
        },
        "/conversations/{id}/status": {
            "patch": {"tags": ["Conversations"], "summary": "Change a conversation's status", "operationId": "updateConversationStatus",
                "parameters": [{"$ref": "#/parameters/workspace"}, {"in": "path", "name": "id", "required": true, "type": "string", "format": "uuid"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateStatusRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/error"}, "404": {"$ref": "#/responses/error"}}}
        },
        "/webchat/{channelId}/messages": {
            "post": {"tags": ["Webchat"], "summary": "Send a webchat message", "operationId": "postWebchatMessage",
                "parameters": [{"in": "path", "name": "channelId", "required": true, "type": "string", "format": "uuid"}, {"in": "header", "name": "Idempotency-Key", "type": "string"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/channels.WebchatMessage"}}],
                "responses": {"200": {"description": "Replay"}, "201": {"description": "Created"}, "400": {"$ref": "#/responses/error"}, "404": {"$ref": "#/responses/error"}, "409": {"$ref": "#/responses/error"}, "429": {"$ref": "#/responses/error"}}}
        },
        "/webchat/{channelId}/visitors/{visitorId}/messages": {
            "get": {"tags": ["Webchat"], "summary": "Webchat history of a visitor", "operationId": "listVisitorMessages",
                "parameters": [{"in": "path", "name": "channelId", "required": true, "type": "string", "format": "uuid"}, {"in": "path", "name": "visitorId", "required": true, "type": "string"}, {"$ref": "#/parameters/page"}, {"$ref": "#/parameters/pageSize"}],
                "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/responses/error"}}}
        }
    },
    "parameters": {
        "workspace": {"in": "header", "name": "X-Workspace-ID", "type": "string", "format": "uuid"},
        "agentId": {"in": "path", "name": "agentId", "required": true, "type": "string", "format": "uuid"},
        "intentId": {"in": "path", "name": "intentId", "required": true, "type": "string", "format": "uuid"},
        "page": {"in": "query", "name": "page", "type": "integer", "minimum": 1, "default": 1},
        "pageSize": {"in": "query", "name": "page_size", "type": "integer", "minimum": 1, "maximum": 100, "default": 20}
    },
    "responses": {
        "error": {"description": "Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
    },
    "definitions": {
        "handlers.ErrorResponse": {"type": "object", "properties": {
            "request_id": {"type": "string"}, "code": {"type": "string", "example": "not_found"}, "message": {"type": "string"}}},
        "handlers.CreateAgentRequest": {"type": "object", "required": ["name"], "properties": {
            "name": {"type": "string"}, "instructions": {"type": "string"}, "knowledge": {"type": "string"}, "model": {"type": "string"}}},
        "handlers.IntentRequest": {"type": "object", "properties": {
            "name": {"type": "string"}, "description": {"type": "string"}, "trigger": {"type": "string", "example": "hola|buenas"},
            "actionType": {"type": "string", "enum": ["WEBHOOK", "INTERNAL", "FORM"]}, "actionUrl": {"type": "string"},
            "payloadJson": {"type": "object"}, "enabled": {"type": "boolean"}}},
        "handlers.DetectRequest": {"type": "object", "required": ["message"], "properties": {"message": {"type": "string"}}},
        "handlers.ChannelRequest": {"type": "object", "properties": {
            "type": {"type": "string", "enum": ["WHATSAPP", "INSTAGRAM", "MESSENGER", "WEBCHAT"]},
            "config": {"type": "object", "properties": {
                "phoneNumberId": {"type": "string"}, "pageId": {"type": "string"}, "instagramAccountId": {"type": "string"}, "accessToken": {"type": "string"}}},
            "isActive": {"type": "boolean"}}},
        "handlers.UpdateStatusRequest": {"type": "object", "required": ["status"], "properties": {
            "status": {"type": "string", "enum": ["BOT", "OPEN", "CLOSED"]}, "assignedTo": {"type": "string"}}},
        "channels.WebchatMessage": {"type": "object", "required": ["visitorId", "content"], "properties": {
            "visitorId": {"type": "string"}, "content": {"type": "string"}, "name": {"type": "string"}, "email": {"type": "string"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Kônsul API",
	Description:      "Agents, intents, channels and conversations for the Kônsul omnichannel assistant.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
