package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"mindhub/internal/domain"
)

// ToolCatalog is the built-in tool schema registry. Schemas are compiled
// once at construction so Validate is cheap on the request path.
type ToolCatalog struct {
	schemas  map[string]domain.ToolSchema
	compiled map[string]*jsonschema.Schema
}

// NewToolCatalog builds the catalog and compiles every tool schema.
func NewToolCatalog() (*ToolCatalog, error) {
	c := &ToolCatalog{
		schemas:  make(map[string]domain.ToolSchema),
		compiled: make(map[string]*jsonschema.Schema),
	}
	compiler := jsonschema.NewCompiler()
	for _, def := range builtinTools() {
		compiled, err := compiler.Compile(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %q: %w", def.Name, err)
		}
		c.schemas[def.Name] = def
		c.compiled[def.Name] = compiled
	}
	return c, nil
}

// Schema returns the definition for a tool name.
func (c *ToolCatalog) Schema(name string) (domain.ToolSchema, bool) {
	s, ok := c.schemas[name]
	return s, ok
}

// ForAgent returns the schemas for the given required and optional tool
// names, preserving order and skipping unknown names.
func (c *ToolCatalog) ForAgent(required, optional []string) []domain.ToolSchema {
	out := make([]domain.ToolSchema, 0, len(required)+len(optional))
	for _, name := range required {
		if s, ok := c.schemas[name]; ok {
			out = append(out, s)
		}
	}
	for _, name := range optional {
		if s, ok := c.schemas[name]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks a tool input payload against the tool's compiled schema.
func (c *ToolCatalog) Validate(name string, input json.RawMessage) error {
	schema, ok := c.compiled[name]
	if !ok {
		return fmt.Errorf("unknown tool: %s", name)
	}
	var data any
	if err := json.Unmarshal(input, &data); err != nil {
		return fmt.Errorf("tool %s: invalid JSON input: %w", name, err)
	}
	result := schema.Validate(data)
	if !result.IsValid() {
		return fmt.Errorf("tool %s: %s", name, result.Error())
	}
	return nil
}

func builtinTools() []domain.ToolSchema {
	return []domain.ToolSchema{
		{
			Name:        "create_nodes",
			Description: "Cria um ou mais nós no mapa mental. Use para adicionar novas ideias, conceitos, tópicos ou qualquer tipo de informação ao mapa. Cada nó pode ter um rótulo, conteúdo detalhado, tipo, cor e ícone. Suporta criação em lote de múltiplos nós com hierarquia.",
			Category:    "map_manipulation",
			Cacheable:   true,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"nodes": {
						"type": "array",
						"description": "Lista de nós a serem criados",
						"items": {
							"type": "object",
							"properties": {
								"label": {"type": "string", "description": "Título curto do nó (max 80 chars)"},
								"content": {"type": "string", "description": "Descrição detalhada ou conteúdo do nó (opcional)"},
								"type": {
									"type": "string",
									"description": "Tipo do nó",
									"enum": ["idea", "task", "note", "reference", "process", "data", "question", "decision", "risk", "opportunity"]
								},
								"parent_id": {"type": "string", "description": "ID do nó pai (null para raiz)"},
								"color": {"type": "string", "description": "Cor hex do nó (ex: #FF6B6B)"},
								"icon": {"type": "string", "description": "Emoji ou ícone do nó"},
								"priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
								"tags": {
									"type": "array",
									"description": "Tags para categorização",
									"items": {"type": "string"}
								}
							},
							"required": ["label", "type"]
						}
					}
				},
				"required": ["nodes"]
			}`),
		},
		{
			Name:        "create_edges",
			Description: "Cria conexões entre nós no mapa mental. Use para estabelecer relações, dependências, fluxos ou associações entre conceitos. Pode especificar o tipo de relação e adicionar rótulo.",
			Category:    "map_manipulation",
			Cacheable:   true,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"edges": {
						"type": "array",
						"description": "Lista de conexões a criar",
						"items": {
							"type": "object",
							"properties": {
								"source_id": {"type": "string", "description": "ID do nó de origem"},
								"target_id": {"type": "string", "description": "ID do nó de destino"},
								"type": {
									"type": "string",
									"description": "Tipo da conexão",
									"enum": ["default", "causal", "temporal", "hierarchical", "associative", "contradictory", "dependency"]
								},
								"label": {"type": "string", "description": "Rótulo da conexão (opcional)"},
								"strength": {"type": "number", "description": "Força da conexão 0-1 (opcional)"}
							},
							"required": ["source_id", "target_id", "type"]
						}
					}
				},
				"required": ["edges"]
			}`),
		},
		{
			Name:        "update_node",
			Description: "Atualiza propriedades de um nó existente no mapa. Use para modificar rótulo, conteúdo, tipo, cor, ícone ou quaisquer metadados de um nó.",
			Category:    "map_manipulation",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"node_id": {"type": "string", "description": "ID do nó a atualizar"},
					"updates": {
						"type": "object",
						"description": "Campos a atualizar",
						"properties": {
							"label": {"type": "string", "description": "Novo rótulo"},
							"content": {"type": "string", "description": "Novo conteúdo"},
							"type": {"type": "string", "enum": ["idea", "task", "note", "reference", "process", "data", "question", "decision", "risk", "opportunity"]},
							"color": {"type": "string", "description": "Nova cor hex"},
							"icon": {"type": "string", "description": "Novo ícone"}
						}
					}
				},
				"required": ["node_id", "updates"]
			}`),
		},
		{
			Name:        "analyze_map",
			Description: "Analisa a estrutura completa do mapa mental. Identifica padrões, clusters temáticos, lacunas, forças e fraquezas. Gera recomendações acionáveis para melhorar o mapa. Use quando precisar entender a qualidade e completude do mapa.",
			Category:    "map_analysis",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"analysis_type": {
						"type": "string",
						"description": "Tipo de análise a realizar",
						"enum": ["full", "patterns", "gaps", "swot", "clusters", "quality"]
					},
					"focus_node_ids": {
						"type": "array",
						"description": "IDs de nós para focar a análise (vazio = mapa inteiro)",
						"items": {"type": "string"}
					},
					"depth": {"type": "number", "description": "Profundidade da análise (1=superficial, 3=profunda)"}
				},
				"required": ["analysis_type"]
			}`),
		},
		{
			Name:        "find_patterns",
			Description: "Descobre padrões ocultos, temas recorrentes e relações não-óbvias entre os nós do mapa. Usa raciocínio avançado para identificar conexões que humanos podem não perceber.",
			Category:    "map_analysis",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"pattern_types": {
						"type": "array",
						"description": "Tipos de padrões a buscar",
						"items": {
							"type": "string",
							"enum": ["themes", "hierarchies", "cycles", "convergences", "divergences", "analogies", "contradictions"]
						}
					},
					"min_confidence": {"type": "number", "description": "Confiança mínima 0-1 para reportar um padrão"}
				},
				"required": ["pattern_types"]
			}`),
		},
		{
			Name:        "create_tasks",
			Description: "Cria tarefas acionáveis a partir de nós do mapa. Cada tarefa inclui título com verbo de ação, descrição, prioridade, estimativa de esforço, tags, checklist de subtarefas e dependências.",
			Category:    "task_management",
			Cacheable:   true,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"tasks": {
						"type": "array",
						"description": "Lista de tarefas a criar",
						"items": {
							"type": "object",
							"properties": {
								"node_id": {"type": "string", "description": "ID do nó de origem"},
								"title": {"type": "string", "description": "Título com verbo de ação"},
								"description": {"type": "string", "description": "Descrição detalhada"},
								"priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
								"estimated_hours": {"type": "number", "description": "Estimativa em horas"},
								"tags": {"type": "array", "items": {"type": "string"}},
								"checklist": {
									"type": "array",
									"items": {
										"type": "object",
										"properties": {
											"text": {"type": "string"},
											"done": {"type": "boolean"}
										},
										"required": ["text", "done"]
									}
								},
								"dependencies": {
									"type": "array",
									"description": "IDs de tarefas das quais esta depende",
									"items": {"type": "string"}
								}
							},
							"required": ["title", "priority"]
						}
					}
				},
				"required": ["tasks"]
			}`),
		},
		{
			Name:        "search_web",
			Description: "Pesquisa na web para encontrar informações relevantes e atualizadas. Use quando o usuário precisa de dados externos, verificação de fatos, tendências recentes ou complementar o mapa com conhecimento externo. Retorna resultados com fontes citáveis.",
			Category:    "search",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Termos de busca"},
					"max_results": {"type": "number", "description": "Máximo de resultados (1-10)"},
					"focus": {
						"type": "string",
						"description": "Foco da pesquisa",
						"enum": ["general", "academic", "news", "technical", "statistics"]
					}
				},
				"required": ["query"]
			}`),
		},
		{
			Name:        "reorganize_map",
			Description: "Reorganiza a estrutura do mapa mental para melhor clareza e lógica. Move nós, cria novos agrupamentos e otimiza a hierarquia sem perder conteúdo.",
			Category:    "organization",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"strategy": {
						"type": "string",
						"description": "Estratégia de reorganização",
						"enum": ["hierarchical", "thematic", "chronological", "priority_based", "complexity_based"]
					},
					"scope": {
						"type": "string",
						"description": "Escopo da reorganização",
						"enum": ["full_map", "selected_branch", "flat_nodes"]
					},
					"preserve_connections": {"type": "boolean", "description": "Manter conexões existentes"}
				},
				"required": ["strategy", "scope"]
			}`),
		},
		{
			Name:        "create_clusters",
			Description: "Agrupa nós automaticamente em clusters temáticos com base em similaridade de conteúdo, relações e contexto.",
			Category:    "organization",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"clusters": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"name": {"type": "string", "description": "Nome do cluster"},
								"node_ids": {"type": "array", "items": {"type": "string"}},
								"color": {"type": "string", "description": "Cor do cluster"},
								"description": {"type": "string"}
							},
							"required": ["name", "node_ids"]
						}
					}
				},
				"required": ["clusters"]
			}`),
		},
		{
			Name:        "update_layout",
			Description: "Sugere e aplica melhorias no layout visual do mapa: posicionamento, espaçamento, cores, ícones e estilos de conexão.",
			Category:    "visualization",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"layout_type": {
						"type": "string",
						"enum": ["radial", "tree", "force_directed", "grid", "horizontal", "vertical"]
					},
					"color_scheme": {
						"type": "object",
						"properties": {
							"strategy": {"type": "string", "enum": ["by_type", "by_depth", "by_cluster", "gradient", "custom"]},
							"colors": {"type": "array", "items": {"type": "string"}}
						},
						"required": ["strategy"]
					},
					"spacing": {
						"type": "object",
						"properties": {
							"horizontal": {"type": "number"},
							"vertical": {"type": "number"}
						}
					}
				},
				"required": ["layout_type"]
			}`),
		},
		{
			Name:        "add_citations",
			Description: "Adiciona citações e referências a nós do mapa. Cada citação inclui fonte, URL, título e texto citado.",
			Category:    "data_extraction",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"citations": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"node_id": {"type": "string"},
								"source": {"type": "string"},
								"url": {"type": "string"},
								"title": {"type": "string"},
								"cited_text": {"type": "string"}
							},
							"required": ["node_id", "source"]
						}
					}
				},
				"required": ["citations"]
			}`),
		},
		{
			Name:        "generate_report",
			Description: "Gera um relatório estruturado a partir do conteúdo do mapa mental. Pode incluir sumário executivo, análise SWOT, plano de ação e conclusões.",
			Category:    "data_extraction",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"format": {
						"type": "string",
						"enum": ["executive_summary", "full_report", "action_plan", "swot_report", "progress_report"]
					},
					"include_sections": {
						"type": "array",
						"items": {
							"type": "string",
							"enum": ["overview", "analysis", "findings", "recommendations", "timeline", "risks", "next_steps"]
						}
					},
					"output_format": {"type": "string", "enum": ["markdown", "json", "html"]}
				},
				"required": ["format"]
			}`),
		},
	}
}
