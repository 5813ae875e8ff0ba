package params

import (
	"fmt"
	"math"

	"SkillChat/internal/service/catalog"
)

// Границы и значения по умолчанию ползунков панели параметров.
const (
	MinTemperature, MaxTemperature, DefaultTemperature = 0.0, 2.0, 1.0
	MinMaxTokens, MaxMaxTokens, DefaultMaxTokens       = 1, 500, 256
	MinTopP, MaxTopP, DefaultTopP                      = 0.0, 1.0, 1.0
	MinPenalty, MaxPenalty, DefaultPenalty             = 0.0, 2.0, 0.0
)

// Generation — параметры генерации. Значение-объект: диспетчер только читает копию.
type Generation struct {
	Temperature      float64 `json:"temperature"`
	MaxTokens        int64   `json:"max_tokens"`
	TopP             float64 `json:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty"`
	Model            string  `json:"model"`
}

// Update — частичное изменение панели; nil-поля не трогаются.
type Update struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int64   `json:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	Model            *string  `json:"model,omitempty"`
}

// Panel хранит текущие параметры сессии и зажимает ввод в допустимые границы.
type Panel struct {
	cat     *catalog.Catalog
	current Generation
}

// NewPanel создаёт панель с дефолтами; модель — preferred, если есть в каталоге, иначе первая.
func NewPanel(cat *catalog.Catalog, preferred string) *Panel {
	return &Panel{
		cat: cat,
		current: Generation{
			Temperature:      DefaultTemperature,
			MaxTokens:        DefaultMaxTokens,
			TopP:             DefaultTopP,
			FrequencyPenalty: DefaultPenalty,
			PresencePenalty:  DefaultPenalty,
			Model:            cat.DefaultModel(preferred),
		},
	}
}

// Get возвращает копию текущих значений.
func (p *Panel) Get() Generation { return p.current }

func (p *Panel) SetTemperature(v float64) { p.current.Temperature = clamp(v, MinTemperature, MaxTemperature) }

func (p *Panel) SetMaxTokens(v int64) {
	p.current.MaxTokens = min(max(v, MinMaxTokens), MaxMaxTokens)
}

func (p *Panel) SetTopP(v float64) { p.current.TopP = clamp(v, MinTopP, MaxTopP) }

func (p *Panel) SetFrequencyPenalty(v float64) {
	p.current.FrequencyPenalty = clamp(v, MinPenalty, MaxPenalty)
}

func (p *Panel) SetPresencePenalty(v float64) {
	p.current.PresencePenalty = clamp(v, MinPenalty, MaxPenalty)
}

// SetModel выбирает модель; неизвестная каталогу модель отклоняется.
func (p *Panel) SetModel(id string) error {
	if !p.cat.Contains(id) {
		return fmt.Errorf("%w: %s", catalog.ErrUnknownModel, id)
	}
	p.current.Model = id
	return nil
}

// Apply применяет частичное изменение. Модель проверяется до изменения числовых полей,
// поэтому при ошибке панель остаётся прежней.
func (p *Panel) Apply(u Update) error {
	if u.Model != nil {
		if err := p.SetModel(*u.Model); err != nil {
			return err
		}
	}
	if u.Temperature != nil {
		p.SetTemperature(*u.Temperature)
	}
	if u.MaxTokens != nil {
		p.SetMaxTokens(*u.MaxTokens)
	}
	if u.TopP != nil {
		p.SetTopP(*u.TopP)
	}
	if u.FrequencyPenalty != nil {
		p.SetFrequencyPenalty(*u.FrequencyPenalty)
	}
	if u.PresencePenalty != nil {
		p.SetPresencePenalty(*u.PresencePenalty)
	}
	return nil
}

// clamp зажимает v в [lo, hi]; NaN превращается в нижнюю границу.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
