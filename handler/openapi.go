package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the telemetry
// and alerting core, adapted from the teacher's auto-generated
// handler/openapi.go to this system's endpoint surface (spec §6).
func OpenAPISpec() map[string]interface{} {
	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "Payment Telemetry & Alerting API",
			"description": "Ingest, rule, alert, and metrics surface over the transaction telemetry core",
			"version":     "1.0.0",
		},
		"servers": []map[string]interface{}{
			{"url": "http://localhost:8080", "description": "Local development"},
		},
		"paths": openAPIPaths(),
		"components": map[string]interface{}{
			"schemas": openAPISchemas(),
		},
		"tags": []map[string]interface{}{
			{"name": "Ingest", "description": "Transaction event ingestion"},
			{"name": "Rules", "description": "Alert rule CRUD"},
			{"name": "Alerts", "description": "Incident lifecycle query"},
			{"name": "Metrics", "description": "Per-minute metric snapshots"},
			{"name": "Health", "description": "Service health checks"},
		},
	}
}

func openAPIPaths() map[string]interface{} {
	return map[string]interface{}{
		"/ingest": map[string]interface{}{
			"post": map[string]interface{}{
				"tags":        []string{"Ingest"},
				"summary":     "Ingest a transaction event",
				"operationId": "ingestEvent",
				"requestBody": map[string]interface{}{
					"required": true,
					"content": map[string]interface{}{
						"application/json": map[string]interface{}{
							"schema": map[string]interface{}{"$ref": "#/components/schemas/InboundEvent"},
						},
					},
				},
				"responses": map[string]interface{}{
					"200": map[string]interface{}{"description": "Event accepted"},
					"400": map[string]interface{}{"description": "Validation failure"},
					"503": map[string]interface{}{"description": "Back-pressure — queue saturated"},
				},
			},
		},
		"/rules": map[string]interface{}{
			"get": map[string]interface{}{
				"tags":        []string{"Rules"},
				"summary":     "List all rules",
				"operationId": "listRules",
				"responses": map[string]interface{}{
					"200": map[string]interface{}{"description": "All rules, active and soft-deleted"},
				},
			},
			"post": map[string]interface{}{
				"tags":        []string{"Rules"},
				"summary":     "Create a rule",
				"operationId": "createRule",
				"requestBody": map[string]interface{}{
					"required": true,
					"content": map[string]interface{}{
						"application/json": map[string]interface{}{
							"schema": map[string]interface{}{"$ref": "#/components/schemas/CreateRuleRequest"},
						},
					},
				},
				"responses": map[string]interface{}{
					"201": map[string]interface{}{"description": "Rule created"},
					"400": map[string]interface{}{"description": "Validation failure"},
				},
			},
		},
		"/rules/{id}": map[string]interface{}{
			"delete": map[string]interface{}{
				"tags":        []string{"Rules"},
				"summary":     "Soft-delete a rule",
				"operationId": "deleteRule",
				"parameters": []map[string]interface{}{
					{"name": "id", "in": "path", "required": true, "schema": map[string]interface{}{"type": "string"}},
				},
				"responses": map[string]interface{}{
					"204": map[string]interface{}{"description": "Rule deactivated"},
					"400": map[string]interface{}{"description": "Rule not found"},
				},
			},
		},
		"/alerts": map[string]interface{}{
			"get": map[string]interface{}{
				"tags":        []string{"Alerts"},
				"summary":     "Query incidents",
				"operationId": "listAlerts",
				"parameters": []map[string]interface{}{
					{"name": "since", "in": "query", "schema": map[string]interface{}{"type": "string", "format": "date-time"}},
					{"name": "state", "in": "query", "schema": map[string]interface{}{"type": "string"}},
				},
				"responses": map[string]interface{}{
					"200": map[string]interface{}{"description": "Incidents ordered by opened_at desc"},
				},
			},
		},
		"/metrics/recent": map[string]interface{}{
			"get": map[string]interface{}{
				"tags":        []string{"Metrics"},
				"summary":     "Per-minute system-wide metric snapshots",
				"operationId": "recentMetrics",
				"parameters": []map[string]interface{}{
					{"name": "minutes", "in": "query", "schema": map[string]interface{}{"type": "integer", "default": 60}},
				},
				"responses": map[string]interface{}{
					"200": map[string]interface{}{"description": "Ordered per-minute snapshots"},
				},
			},
		},
		"/healthz": map[string]interface{}{
			"get": map[string]interface{}{
				"tags":        []string{"Health"},
				"summary":     "Liveness probe",
				"operationId": "healthz",
				"responses": map[string]interface{}{
					"200": map[string]interface{}{"description": "Service is alive"},
				},
			},
		},
		"/metrics": map[string]interface{}{
			"get": map[string]interface{}{
				"tags":        []string{"Health"},
				"summary":     "Prometheus process metrics",
				"operationId": "processMetrics",
				"responses": map[string]interface{}{
					"200": map[string]interface{}{"description": "Prometheus text exposition format"},
				},
			},
		},
	}
}

func openAPISchemas() map[string]interface{} {
	return map[string]interface{}{
		"InboundEvent": map[string]interface{}{
			"type":     "object",
			"required": []string{"event_id", "merchant_id", "provider_id", "country", "status", "amount"},
			"properties": map[string]interface{}{
				"event_id":             map[string]interface{}{"type": "string"},
				"merchant_id":          map[string]interface{}{"type": "string"},
				"provider_id":          map[string]interface{}{"type": "string"},
				"country":              map[string]interface{}{"type": "string", "description": "Two-letter uppercase ISO code"},
				"status":               map[string]interface{}{"type": "string", "enum": []string{"CREATED", "SUCCEEDED", "DECLINED", "ERROR", "REJECTED"}},
				"sub_status":           map[string]interface{}{"type": "string"},
				"amount":               map[string]interface{}{"$ref": "#/components/schemas/Amount"},
				"issuer_name":          map[string]interface{}{"type": "string"},
				"card_brand":           map[string]interface{}{"type": "string"},
				"bin":                  map[string]interface{}{"type": "string"},
				"response_code":        map[string]interface{}{"type": "string"},
				"merchant_advice_code": map[string]interface{}{"type": "string"},
				"latency_ms":           map[string]interface{}{"type": "integer"},
			},
		},
		"Amount": map[string]interface{}{
			"type":     "object",
			"required": []string{"value", "currency"},
			"properties": map[string]interface{}{
				"value":    map[string]interface{}{"type": "number"},
				"currency": map[string]interface{}{"type": "string"},
			},
		},
		"CreateRuleRequest": map[string]interface{}{
			"type":     "object",
			"required": []string{"metric_type", "operator", "threshold", "severity"},
			"properties": map[string]interface{}{
				"merchant_id":       map[string]interface{}{"type": "string"},
				"country":           map[string]interface{}{"type": "string"},
				"provider_id":       map[string]interface{}{"type": "string"},
				"issuer":            map[string]interface{}{"type": "string"},
				"metric_type":       map[string]interface{}{"type": "string", "enum": []string{"APPROVAL_RATE", "ERROR_RATE", "DECLINE_RATE", "TOTAL_VOLUME"}},
				"operator":          map[string]interface{}{"type": "string", "enum": []string{"<", ">", "<=", ">="}},
				"threshold":         map[string]interface{}{"type": "number"},
				"min_transactions":  map[string]interface{}{"type": "integer"},
				"has_time_window":   map[string]interface{}{"type": "boolean"},
				"start_hour_utc":    map[string]interface{}{"type": "integer"},
				"end_hour_utc":      map[string]interface{}{"type": "integer"},
				"severity":          map[string]interface{}{"type": "string", "enum": []string{"WARNING", "CRITICAL"}},
			},
		},
		"Error": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"error": map[string]interface{}{"type": "string"},
				"field": map[string]interface{}{"type": "string"},
			},
		},
	}
}

// OpenAPIHandler serves the OpenAPI spec at /openapi.json.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := OpenAPISpec()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(spec)
	}
}

// SwaggerUIHandler serves a minimal Swagger UI page.
func SwaggerUIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Telemetry & Alerting API</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
    SwaggerUI({
        url: '/openapi.json',
        dom_id: '#swagger-ui',
        deepLinking: true,
        presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
        layout: "BaseLayout"
    });
    </script>
</body>
</html>`
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, html)
	}
}
