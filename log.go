package goIdentity

import "log/slog"

// Log attributes. Secrets (passwords, hashes, tokens, stamps, keys) never
// reach the logger.

func attrUserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

func attrProvider(name string) slog.Attr {
	return slog.String("provider", name)
}

func attrPurpose(purpose string) slog.Attr {
	return slog.String("purpose", purpose)
}

func attrError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func attrComponent(name string) slog.Attr {
	return slog.String("component", name)
}
