package citation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseRecommendationFileJSON(t *testing.T) {
	list := writeFile(t, "recs.json", `[{"ad_id":"a","title":"Alpha","intent_match_score":0.4,"url":"https://a.example","keywords":["x"]}]`)
	recs, err := ParseRecommendationFile(list)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, Recommendation{AdID: "a", Title: "Alpha", IntentMatchScore: 0.4, URL: "https://a.example", Keywords: []string{"x"}}, recs[0])

	env := writeFile(t, "recs.json", `{"recommendations":[{"ad_id":"b","admesh_link":"https://t.example/b"}]}`)
	recs, err = ParseRecommendationFile(env)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "https://t.example/b", recs[0].Link())
}

func TestParseRecommendationFileYAML(t *testing.T) {
	path := writeFile(t, "recs.yaml", `recommendations:
  - ad_id: a
    title: Alpha
    intent_match_score: 0.9
    url: https://a.example
    keywords: [crm, sales]
`)
	recs, err := ParseRecommendationFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"crm", "sales"}, recs[0].Keywords)
	assert.Equal(t, 0.9, recs[0].IntentMatchScore)
}

func TestParseRecommendationFileCSV(t *testing.T) {
	path := writeFile(t, "recs.csv", "\ufeffAd ID,Title,Score,Link,Tags,Reason\n"+
		"a,Alpha,0.5,https://a.example,crm; sales|pipeline,Because\n"+
		",,,,,\n"+
		"b,Beta,,https://b.example,,\n")
	recs, err := ParseRecommendationFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, Recommendation{
		AdID:             "a",
		Title:            "Alpha",
		IntentMatchScore: 0.5,
		URL:              "https://a.example",
		Reason:           "Because",
		Keywords:         []string{"crm", "sales", "pipeline"},
	}, recs[0])
	assert.Zero(t, recs[1].IntentMatchScore)
	assert.Nil(t, recs[1].Keywords)
}

func TestParseRecommendationFileTSVExplicitColumns(t *testing.T) {
	path := writeFile(t, "recs.tsv", "c1\tc2\tc3\n"+"a\tAlpha\thttps://a.example\n")
	recs, err := ParseRecommendationFileWithOptions(path, RecommendationParseOptions{
		AdIDColumn:  "#1",
		TitleColumn: "c2",
		URLColumn:   "#3",
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Usable())
	assert.Equal(t, "Alpha", recs[0].Title)
}

func TestParseRecommendationFileErrors(t *testing.T) {
	noHeader := writeFile(t, "recs.csv", "foo,bar\n1,2\n")
	_, err := ParseRecommendationFile(noHeader)
	assert.ErrorContains(t, err, "no recognizable recommendation header")

	badScore := writeFile(t, "recs.csv", "ad_id,title,score\na,Alpha,high\n")
	_, err = ParseRecommendationFile(badScore)
	assert.ErrorContains(t, err, `row 2: invalid score "high"`)

	_, err = ParseRecommendationFileWithOptions(badScore, RecommendationParseOptions{AdIDColumn: "#0"})
	assert.ErrorContains(t, err, "1-based")
	_, err = ParseRecommendationFileWithOptions(badScore, RecommendationParseOptions{AdIDColumn: "#9"})
	assert.ErrorContains(t, err, "out of range")
	_, err = ParseRecommendationFileWithOptions(badScore, RecommendationParseOptions{URLColumn: "missing"})
	assert.ErrorContains(t, err, `column "missing" not found`)

	empty := writeFile(t, "recs.csv", "")
	_, err = ParseRecommendationFile(empty)
	assert.Error(t, err)

	_, err = ParseRecommendationFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestColumnCandidatesOverride(t *testing.T) {
	defer SetColumnCandidates(DefaultColumnCandidates())
	SetColumnCandidates(ColumnCandidates{Title: []string{"headline"}})

	path := writeFile(t, "recs.csv", "id,headline,url\na,Alpha,https://a.example\n")
	recs, err := ParseRecommendationFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Alpha", recs[0].Title)
	assert.Equal(t, "a", recs[0].AdID)
}

func TestParseExternalLinks(t *testing.T) {
	jsonPath := writeFile(t, "links.json", `{"Acme":"https://acme.example"}`)
	links, err := ParseExternalLinks(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Acme": "https://acme.example"}, links)

	yamlPath := writeFile(t, "links.yml", "Acme: https://acme.example\nGlobex: https://globex.example\n")
	links, err = ParseExternalLinks(yamlPath)
	require.NoError(t, err)
	assert.Len(t, links, 2)

	csvPath := writeFile(t, "links.csv", "name,url\nAcme,https://acme.example\nBlank,\n")
	links, err = ParseExternalLinks(csvPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Acme": "https://acme.example"}, links)

	tsvPath := writeFile(t, "links.tsv", "Acme\thttps://acme.example\n")
	links, err = ParseExternalLinks(tsvPath)
	require.NoError(t, err)
	assert.Equal(t, "https://acme.example", links["Acme"])
}

func TestReadTextFile(t *testing.T) {
	path := writeFile(t, "story.txt", "\ufeffline one\r\nline two\r\n")
	text, err := ReadTextFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", text)
}
