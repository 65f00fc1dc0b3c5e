package core

// Pageable is the metadata envelope returned with every paginated listing.
type Pageable struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// Page is one window of an ordered sequence.
type Page[T any] struct {
	Data     []T      `json:"data"`
	Pageable Pageable `json:"pageable"`
}

// BuildPageable validates the window and returns the metadata unchanged.
// An offset beyond total is legal; the listing simply yields no data.
func BuildPageable(limit, offset, total int) (Pageable, error) {
	verr := &ValidationError{}
	if limit < 0 {
		verr.add("limit", "must be non-negative")
	}
	if offset < 0 {
		verr.add("offset", "must be non-negative")
	}
	if total < 0 {
		verr.add("total", "must be non-negative")
	}
	if len(verr.Fields) > 0 {
		return Pageable{}, verr
	}
	return Pageable{Limit: limit, Offset: offset, Total: total}, nil
}

// Window returns slice bounds [lo, hi) for a page over n items.
func Window(n, limit, offset int) (lo, hi int) {
	if offset < 0 {
		offset = 0
	}
	if offset >= n || limit <= 0 {
		return n, n
	}
	lo = offset
	hi = offset + limit
	if hi > n || hi < lo {
		hi = n
	}
	return lo, hi
}
