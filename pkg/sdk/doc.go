// Package imgdex is an embedded Go client for searching an imgdex image
// index: it builds the same Elasticsearch queries as the imgdex API server
// without going through HTTP.
//
//	client, _ := imgdex.New(ctx,
//	    imgdex.WithElasticsearch("http://localhost:9200"),
//	    imgdex.WithEmbedder(myOracle),
//	)
//	res, _ := client.Search(ctx, imgdex.Query{Image: jpegBytes, Text: "beach", TopK: 10})
//	for _, h := range res.Hits {
//	    fmt.Println(h.Score, h.RelativePath)
//	}
//
// Without an embedder the client runs text-only queries; an image query
// then reports EmbeddingFailed and falls back to the text filter.
package imgdex
