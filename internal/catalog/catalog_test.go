package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_NameCollisionAppendsCodeFragment(t *testing.T) {
	c := New()
	c.Add(KOSPI, "005930", "삼성전자")
	c.Add(KOSDAQ, "005931", "삼성전자")

	name1, _ := c.Name("005930")
	name2, _ := c.Name("005931")
	assert.Equal(t, "삼성전자", name1)
	assert.Equal(t, "삼성전자(005931)", name2, "second occupant of the name gets the code-fragment suffix")
}

func TestNameOrCodeFallsBackToCode(t *testing.T) {
	c := New()
	assert.Equal(t, "999999", c.NameOrCode("999999"))
	c.Add(KOSPI, "999999", "테스트")
	assert.Equal(t, "테스트", c.NameOrCode("999999"))
}

func TestCodeByExactName_AliasTakesPrecedence(t *testing.T) {
	c := New()
	c.Add(KOSPI, "005930", "삼성전자")
	c.AddAlias("삼전", "005930")

	code, ok := c.CodeByExactName("삼전")
	require.True(t, ok)
	assert.Equal(t, "005930", code)

	code, ok = c.CodeByExactName("삼성전자")
	require.True(t, ok)
	assert.Equal(t, "005930", code)
}

func TestUniverse_NilReturnsUnion(t *testing.T) {
	c := New()
	c.Add(KOSPI, "A", "a")
	c.Add(KOSDAQ, "B", "b")

	kospi := KOSPI
	assert.Equal(t, []string{"A"}, c.Universe(&kospi))
	assert.ElementsMatch(t, []string{"A", "B"}, c.Universe(nil))
}

func TestIndexFor(t *testing.T) {
	assert.Equal(t, KOSPIIndex, IndexFor(KOSPI))
	assert.Equal(t, KOSDAQIndex, IndexFor(KOSDAQ))
}

func TestLoadCSVs(t *testing.T) {
	dir := t.TempDir()
	kospiPath := filepath.Join(dir, "kospi.csv")
	kosdaqPath := filepath.Join(dir, "kosdaq.csv")
	aliasPath := filepath.Join(dir, "alias.csv")

	require.NoError(t, os.WriteFile(kospiPath, []byte("종목코드,종목명\n005930,삼성전자\n"), 0o644))
	require.NoError(t, os.WriteFile(kosdaqPath, []byte("종목코드,종목명\n035720,카카오\n"), 0o644))
	require.NoError(t, os.WriteFile(aliasPath, []byte("alias,ticker\n삼전,005930\n"), 0o644))

	cat, err := LoadCSVs(kospiPath, kosdaqPath, aliasPath)
	require.NoError(t, err)

	code, ok := cat.CodeByExactName("삼전")
	require.True(t, ok)
	assert.Equal(t, "005930", code)

	kospi := KOSPI
	assert.Equal(t, []string{"005930"}, cat.Universe(&kospi))
}

func TestLoadCSVs_MissingAliasFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	kospiPath := filepath.Join(dir, "kospi.csv")
	kosdaqPath := filepath.Join(dir, "kosdaq.csv")
	require.NoError(t, os.WriteFile(kospiPath, []byte("종목코드,종목명\n"), 0o644))
	require.NoError(t, os.WriteFile(kosdaqPath, []byte("종목코드,종목명\n"), 0o644))

	_, err := LoadCSVs(kospiPath, kosdaqPath, filepath.Join(dir, "missing.csv"))
	assert.NoError(t, err)
}
