package api

import "github.com/mattjoyce/synapse-gw/internal/synapse"

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the gateway routes.
func buildOpenAPIDoc(version string) map[string]any {
	if version == "" {
		version = "dev"
	}
	secured := []any{map[string]any{"BearerAuth": []string{}}}
	errorResponse := func(desc string) map[string]any {
		return map[string]any{
			"description": desc,
			"content": map[string]any{
				"application/json": map[string]any{"schema": map[string]any{"$ref": "#/components/schemas/Error"}},
			},
		}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "Synapse Gateway",
			"version": version,
		},
		"paths": map[string]any{
			"/text-to-speech-clone": map[string]any{
				"post": map[string]any{
					"operationId": "textToSpeechClone",
					"summary":     "Clone a reference voice and speak the given text",
					"security":    secured,
					"requestBody": map[string]any{
						"required": false,
						"content": map[string]any{
							"application/json": map[string]any{"schema": textToSpeechCloneSchema()},
						},
					},
					"responses": map[string]any{
						"200": map[string]any{
							"description": "Generation result; error_message is set when the worker failed",
							"content": map[string]any{
								"application/json": map[string]any{"schema": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"audio_b64":     map[string]any{"type": []string{"string", "null"}},
										"error_message": map[string]any{"type": []string{"string", "null"}},
									},
								}},
							},
						},
						"400": errorResponse("Invalid model provided, or no valid response"),
						"401": errorResponse("Missing or invalid credentials"),
						"403": errorResponse("Caller rejected or insufficient scope"),
						"422": errorResponse("Malformed body"),
					},
				},
			},
			"/available-tasks": map[string]any{
				"get": map[string]any{
					"operationId": "availableTasks",
					"security":    secured,
					"responses": map[string]any{
						"200": map[string]any{"description": "Registered task names"},
					},
				},
			},
			"/query/{queryID}": map[string]any{
				"get": map[string]any{
					"operationId": "getQuery",
					"security":    secured,
					"parameters": []any{map[string]any{
						"name": "queryID", "in": "path", "required": true,
						"schema": map[string]any{"type": "string"},
					}},
					"responses": map[string]any{
						"200": map[string]any{"description": "Query history record"},
						"404": errorResponse("Unknown query"),
					},
				},
			},
			"/events": map[string]any{
				"get": map[string]any{
					"operationId": "events",
					"security":    secured,
					"responses": map[string]any{
						"200": map[string]any{"description": "text/event-stream of query lifecycle events"},
					},
				},
			},
			"/healthz": map[string]any{
				"get": map[string]any{
					"operationId": "healthz",
					"responses":   map[string]any{"200": map[string]any{"description": "Service health"}},
				},
			},
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"Error": map[string]any{
					"type":       "object",
					"properties": map[string]any{"detail": map[string]any{"type": "string"}},
				},
			},
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

func textToSpeechCloneSchema() map[string]any {
	d := synapse.DefaultTextToSpeechCloneIncoming()
	engines := []string{}
	for _, e := range synapse.SupportedEngines(synapse.TaskTextToSpeechClone).Engines() {
		engines = append(engines, string(e))
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text":            map[string]any{"type": "string", "default": d.Text, "maxLength": 5000},
			"reference":       map[string]any{"type": "string", "default": d.Reference},
			"alpha":           map[string]any{"type": "number", "default": d.Alpha, "minimum": 0, "maximum": 1},
			"beta":            map[string]any{"type": "number", "default": d.Beta, "minimum": 0, "maximum": 1},
			"diffusion_steps": map[string]any{"type": "integer", "default": d.DiffusionSteps, "minimum": 1, "maximum": 200},
			"embedding_scale": map[string]any{"type": "number", "default": d.EmbeddingScale, "minimum": 0, "maximum": 10},
			"seed":            map[string]any{"type": "integer", "default": d.Seed},
			"is_mock":         map[string]any{"type": "boolean", "default": d.IsMock},
			"engine":          map[string]any{"type": "string", "default": string(d.Engine), "enum": engines},
		},
	}
}
