package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
)

// Bind resolves the category-specific parts of cat against the registered
// categories: configuration type names become the Requested bitmap, private
// fields are parsed by their category, and suite case selections are checked.
// Every problem found is reported together.
func (r *Registry) Bind(ctx context.Context, cat *config.Catalog) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, cfg := range cat.Configurations {
		c, ok := r.Category(cfg.Category)
		if !ok {
			errs = append(errs, fmt.Sprintf("configuration '%s': unknown category '%s'", cfg.Name, cfg.Category))
			continue
		}

		requested := bitmask.Bit(bitmask.Default)
		for _, name := range cfg.TypeNames {
			t, ok := category.TypeByName(c, name)
			if !ok {
				errs = append(errs, fmt.Sprintf("configuration '%s': category '%s' has no configuration type '%s'", cfg.Name, c.Name(), name))
				continue
			}
			requested |= bitmask.Bit(t)
		}
		cfg.Requested = requested

		allowed := c.PrivateFieldNames()
		for _, f := range cfg.PrivateFields {
			if !slices.Contains(allowed, f.Key) {
				errs = append(errs, fmt.Sprintf("configuration '%s': category '%s' does not accept private field '%s'", cfg.Name, c.Name(), f.Key))
				continue
			}
			if err := c.ParsePrivateField(f.Key, f.Value, cfg); err != nil {
				errs = append(errs, fmt.Sprintf("configuration '%s', private field '%s': %v", cfg.Name, f.Key, err))
			}
		}
		logger.Debug("Bound configuration.", "configuration", cfg.Name, "category", c.Name(), "requested", cfg.Requested)
	}

	for _, s := range cat.Suites {
		c, ok := r.Category(s.Category)
		if !ok {
			errs = append(errs, fmt.Sprintf("suite '%s': unknown category '%s'", s.Name, s.Category))
			continue
		}
		for _, sel := range s.Cases {
			cc, ok := c.CaseName(sel.Class)
			if !ok {
				errs = append(errs, fmt.Sprintf("suite '%s': category '%s' has no case class '%s'", s.Name, c.Name(), sel.Class))
				continue
			}
			for _, id := range sel.IDs {
				if !cc.Has(id) {
					errs = append(errs, fmt.Sprintf("suite '%s': case '%s.%d' is not defined by category '%s'", s.Name, sel.Class, id, c.Name()))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("catalog binding failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Catalog bound to registered categories.", "configurations", len(cat.Configurations), "suites", len(cat.Suites))
	return nil
}
