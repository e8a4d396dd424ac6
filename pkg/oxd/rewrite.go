package oxd

// Rewrite returns a copy of doc whose asset references are translated
// through m. doc is left untouched and m is only read. A reference with no
// entry in m fails with *UnmappedAssetError; callers must populate m with
// every id returned by AssetIDs before rewriting.
func Rewrite[From, To AssetID](doc *Document[From], m AssetMap[From, To]) (*Document[To], error) {
	lookup := func(id From) (To, error) {
		to, ok := m[id]
		if !ok {
			var zero To
			return zero, &UnmappedAssetError{ID: string(id)}
		}
		return to, nil
	}

	out := &Document[To]{
		ID:      doc.ID,
		Version: doc.Version,
		Name:    doc.Name,
	}
	if doc.Artboards != nil {
		out.Artboards = make([]Artboard[To], 0, len(doc.Artboards))
	}

	for _, ab := range doc.Artboards {
		next := Artboard[To]{
			Name:   ab.Name,
			Width:  ab.Width,
			Height: ab.Height,
		}
		if ab.Background != nil {
			bg, err := lookup(*ab.Background)
			if err != nil {
				return nil, err
			}
			next.Background = &bg
		}
		if ab.Images != nil {
			next.Images = make([]Image[To], 0, len(ab.Images))
		}
		for _, img := range ab.Images {
			src, err := lookup(img.Source)
			if err != nil {
				return nil, err
			}
			next.Images = append(next.Images, Image[To]{
				Name:   img.Name,
				X:      img.X,
				Y:      img.Y,
				Width:  img.Width,
				Height: img.Height,
				Source: src,
			})
		}
		out.Artboards = append(out.Artboards, next)
	}

	return out, nil
}

// AssetIDs lists every distinct asset id referenced by doc in document
// order: artboards in sequence, each background before its images.
func AssetIDs[A AssetID](doc *Document[A]) []A {
	seen := make(map[A]struct{})
	var ids []A
	add := func(id A) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, ab := range doc.Artboards {
		if ab.Background != nil {
			add(*ab.Background)
		}
		for _, img := range ab.Images {
			add(img.Source)
		}
	}
	return ids
}
