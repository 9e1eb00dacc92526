package playbook

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shalev007/restbook/internal/config"
	"github.com/shalev007/restbook/internal/template"
)

// stepRenderer применяет шаблоны к конфигурации шага.
//
// Исходная конфигурация никогда не изменяется: каждая итерация шага
// получает свежую отрендеренную копию.
type stepRenderer struct {
	tmpl *template.Renderer
}

func newStepRenderer() *stepRenderer {
	return &stepRenderer{tmpl: template.NewRenderer()}
}

// renderRequest возвращает отрендеренную копию запроса шага.
// Тело из from_file читается, рендерится и разбирается как JSON.
func (r *stepRenderer) renderRequest(req config.RequestConfig, context map[string]any) (config.RequestConfig, error) {
	out := config.RequestConfig{Method: req.Method}

	endpoint, err := r.tmpl.Render(req.Endpoint, context)
	if err != nil {
		return out, fmt.Errorf("render endpoint: %w", err)
	}
	out.Endpoint = endpoint

	if req.Data != nil {
		data, err := r.tmpl.RenderMap(req.Data, context)
		if err != nil {
			return out, fmt.Errorf("render request data: %w", err)
		}
		out.Data = data
	}

	if req.FromFile != "" {
		data, err := r.renderBodyFile(req.FromFile, context)
		if err != nil {
			return out, err
		}
		out.Data = data
	}

	if req.Params != nil {
		params, err := r.tmpl.RenderMap(req.Params, context)
		if err != nil {
			return out, fmt.Errorf("render request params: %w", err)
		}
		out.Params = params
	}

	if req.Headers != nil {
		headers, err := r.tmpl.RenderMap(req.Headers, context)
		if err != nil {
			return out, fmt.Errorf("render request headers: %w", err)
		}
		out.Headers = headers
	}

	return out, nil
}

// renderBodyFile читает файл тела, рендерит его содержимое
// и разбирает результат как JSON.
func (r *stepRenderer) renderBodyFile(path string, context map[string]any) (map[string]any, error) {
	renderedPath, err := r.tmpl.Render(path, context)
	if err != nil {
		return nil, fmt.Errorf("render body file path: %w", err)
	}

	raw, err := os.ReadFile(renderedPath)
	if err != nil {
		return nil, fmt.Errorf("read body file: %w", err)
	}

	rendered, err := r.tmpl.Render(string(raw), context)
	if err != nil {
		return nil, fmt.Errorf("render body file %s: %w", renderedPath, err)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(rendered), &data); err != nil {
		return nil, fmt.Errorf("parse body file %s: %w", renderedPath, err)
	}
	return data, nil
}

// renderStores возвращает отрендеренные копии правил извлечения.
func (r *stepRenderer) renderStores(stores []config.StoreConfig, context map[string]any) ([]config.StoreConfig, error) {
	if len(stores) == 0 {
		return nil, nil
	}

	out := make([]config.StoreConfig, 0, len(stores))
	for _, store := range stores {
		name, err := r.tmpl.Render(store.Var, context)
		if err != nil {
			return nil, fmt.Errorf("render store var: %w", err)
		}
		query, err := r.tmpl.Render(store.Query, context)
		if err != nil {
			return nil, fmt.Errorf("render store query: %w", err)
		}
		out = append(out, config.StoreConfig{Var: name, Query: query, Append: store.Append})
	}
	return out, nil
}

// renderString рендерит произвольную строку конфигурации.
func (r *stepRenderer) renderString(s string, context map[string]any) (string, error) {
	return r.tmpl.Render(s, context)
}
