package budget

import (
	"strings"
	"testing"

	"github.com/siherrmann/reportrag/model"
	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	t.Run("Han characters are single tokens", func(t *testing.T) {
		assert.Equal(t, []string{"粮", "食", "产", "量"}, Tokens("粮食产量"))
	})

	t.Run("Latin words are case-folded", func(t *testing.T) {
		assert.Equal(t, []string{"gdp", "grew", "5", "gdp"}, Tokens("GDP grew 5%, gdp"))
	})

	t.Run("Mixed text", func(t *testing.T) {
		assert.Equal(t, []string{"gdp", "增", "长", "5", "2"}, Tokens("GDP增长5.2"))
	})
}

func TestDensity(t *testing.T) {
	config := model.DefaultConfig().Density

	t.Run("Length term is capped", func(t *testing.T) {
		short := Density("abc", 250, model.DensityConfig{LengthWeight: 1, LengthCap: 500})
		long := Density("abc", 5000, model.DensityConfig{LengthWeight: 1, LengthCap: 500})

		assert.InDelta(t, 0.5, short, 1e-9)
		assert.InDelta(t, 1.0, long, 1e-9)
	})

	t.Run("Repetitive text scores lower than varied text", func(t *testing.T) {
		repetitive := strings.Repeat("增长", 20)
		varied := "全省地区生产总值增长百分之五点二，粮食产量再创新高，城乡居民收入稳步提高，新增城镇就业一百万人"

		assert.Less(t, Density(repetitive, 0, config), Density(varied, 0, config))
	})

	t.Run("Empty content has zero density", func(t *testing.T) {
		assert.Equal(t, 0.0, Density("", 0, config))
	})
}
