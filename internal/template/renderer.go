package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"text/template"
)

// Ошибки рендеринга шаблонов.
var (
	// ErrParse — ошибка парсинга шаблона.
	ErrParse = errors.New("template parse failed")

	// ErrRender — ошибка рендеринга шаблона.
	ErrRender = errors.New("template render failed")
)

// envPattern находит обращения к переменным окружения вида env.NAME.
var envPattern = regexp.MustCompile(`\benv\.([A-Za-z_][A-Za-z0-9_]*)`)

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если второй аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// coalesce — возвращает первое непустое значение
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if v != nil {
				if s, ok := v.(string); ok && s == "" {
					continue
				}
				return v
			}
		}
		return nil
	},

	// join — объединяет слайс строк
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},

	// split — разбивает строку на слайс
	"split": func(sep, s string) []string {
		return strings.Split(s, sep)
	},

	// contains — проверяет, содержит ли строка подстроку
	"contains": strings.Contains,

	// lower — приводит к нижнему регистру
	"lower": strings.ToLower,

	// upper — приводит к верхнему регистру
	"upper": strings.ToUpper,

	// trim — удаляет пробелы по краям
	"trim": strings.TrimSpace,

	// replace — заменяет подстроку
	"replace": strings.ReplaceAll,
}

// Renderer рендерит строковые шаблоны с переменными playbook и
// переменными окружения.
//
// Скомпилированные шаблоны кэшируются по тексту шаблона.
// Рендеринг чистый: входные структуры не модифицируются.
type Renderer struct {
	mu    sync.RWMutex
	cache map[string]*template.Template

	// env — источник переменных окружения (подменяется в тестах).
	env func(string) string
}

// NewRenderer создаёт новый Renderer.
func NewRenderer() *Renderer {
	return &Renderer{
		cache: make(map[string]*template.Template),
		env:   os.Getenv,
	}
}

// lookup возвращает кэшированный шаблон или компилирует и кэширует новый.
func (r *Renderer) lookup(tmpl string) (*template.Template, error) {
	r.mu.RLock()
	t, ok := r.cache[tmpl]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	r.mu.Lock()
	r.cache[tmpl] = t
	r.mu.Unlock()
	return t, nil
}

// Render рендерит строковый шаблон с контекстом переменных.
//
// Шаблон может содержать Go template выражения:
//
//	{{ .user_id }}
//	{{ .env.API_HOST }}
//	{{ .item.name }} (внутри итераций)
//
// Обращения к env.NAME подставляются из переменных окружения
// под пространством имён env.
func (r *Renderer) Render(tmpl string, context map[string]any) (string, error) {
	// Строки без шаблонных выражений возвращаем как есть
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := r.lookup(tmpl)
	if err != nil {
		return "", err
	}

	data := make(map[string]any, len(context)+1)
	for k, v := range context {
		data[k] = v
	}

	// Подставляем только те переменные окружения, на которые
	// шаблон действительно ссылается
	if matches := envPattern.FindAllStringSubmatch(tmpl, -1); len(matches) > 0 {
		envVars := make(map[string]any, len(matches))
		for _, m := range matches {
			envVars[m[1]] = r.env(m[1])
		}
		data["env"] = envVars
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}

	return buf.String(), nil
}

// RenderValue рендерит произвольное значение.
// Рекурсивно обрабатывает map и slice; не-строковые листья
// возвращаются без изменений.
func (r *Renderer) RenderValue(value any, context map[string]any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case string:
		return r.Render(v, context)

	case map[string]any:
		return r.RenderMap(v, context)

	case []any:
		return r.RenderList(v, context)

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, val := range v {
			rendered, err := r.Render(val, context)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []string:
		result := make([]string, len(v))
		for i, val := range v {
			rendered, err := r.Render(val, context)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	default:
		// Числа, bool и прочее возвращаем как есть
		return value, nil
	}
}

// RenderMap рендерит все строковые листья map в новую map.
func (r *Renderer) RenderMap(data map[string]any, context map[string]any) (map[string]any, error) {
	if data == nil {
		return nil, nil
	}

	result := make(map[string]any, len(data))
	for key, val := range data {
		rendered, err := r.RenderValue(val, context)
		if err != nil {
			return nil, err
		}
		result[key] = rendered
	}
	return result, nil
}

// RenderList рендерит все строковые листья слайса в новый слайс.
func (r *Renderer) RenderList(items []any, context map[string]any) ([]any, error) {
	if items == nil {
		return nil, nil
	}

	result := make([]any, len(items))
	for i, val := range items {
		rendered, err := r.RenderValue(val, context)
		if err != nil {
			return nil, err
		}
		result[i] = rendered
	}
	return result, nil
}
