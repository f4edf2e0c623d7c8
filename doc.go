// Package hybridq compiles multi-modal query documents into hybrid
// Elasticsearch queries: knn clauses over dense_vector fields plus a
// bool.should of BM25 multi_match clauses.
//
// # Low-level API
//
//	compiler, _ := hybridq.New(
//	    hybridq.WithSchema(schema),
//	    hybridq.WithEncoder(hybridq.EncoderSpec{Name: "clip", Model: "clip-vit", Modalities: []hybridq.Modality{hybridq.Text, hybridq.Image}}, clip),
//	)
//	queries, _ := compiler.Compile(ctx, hybridq.Request{
//	    Documents: []hybridq.Document{{Chunks: []hybridq.Chunk{{Field: "text", Text: "cat"}}}},
//	    Filters:   map[string]any{"tags__color": "red"},
//	})
//
// # Schema-first API with struct tags
//
//	type Product struct {
//	    Title string  `hybridq:"title,lexical,vector=clip/512"`
//	    GIF   string  `hybridq:"gif,vector=clip/512"`
//	    Color string  `hybridq:"tags__color,tag"`
//	    Price float64 `hybridq:"tags__price,numeric"`
//	}
//
//	schema, _ := hybridq.SchemaOf[Product]("products")
//	body, _ := compiler.Query().Text("text", "cat").Where("tags__color", "red").Do(ctx)
package hybridq
