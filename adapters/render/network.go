package render

import (
	"encoding/json"
	"html/template"
	"os"

	"cdrlens/domain/analysis"
	"cdrlens/domain/carrier"
	"cdrlens/domain/core"
)

type visNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Group int    `json:"group"`
}

type visEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value int    `json:"value"`
	Title string `json:"title"`
}

type visPayload struct {
	Nodes []visNode `json:"nodes"`
	Edges []visEdge `json:"edges"`
}

func renderNetwork(_ *carrier.Profile, agg *analysis.Aggregates, path string) error {
	if agg.Net == nil || len(agg.Net.Nodes) == 0 {
		return core.ErrEmptySeries
	}

	payload := visPayload{}
	for _, n := range agg.Net.Nodes {
		payload.Nodes = append(payload.Nodes, visNode{ID: n.Number, Label: n.Number, Group: n.Group})
	}
	for _, e := range agg.Net.Edges {
		payload.Edges = append(payload.Edges, visEdge{
			From:  e.From,
			To:    e.To,
			Value: e.Weight,
			Title: "calls",
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := networkTemplate.Execute(f, template.JS(data)); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

var networkTemplate = template.Must(template.New("network").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Call Network</title>
<script src="https://unpkg.com/vis-network@9.1.9/standalone/umd/vis-network.min.js"></script>
<style>html, body, #network { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="network"></div>
<script>
var data = {{.}};
var container = document.getElementById('network');
var network = new vis.Network(container, {
  nodes: new vis.DataSet(data.nodes),
  edges: new vis.DataSet(data.edges)
}, {
  nodes: {shape: 'dot', size: 12},
  edges: {scaling: {min: 1, max: 8}},
  physics: {stabilization: true, barnesHut: {gravitationalConstant: -3000}}
});
</script>
</body>
</html>
`))
