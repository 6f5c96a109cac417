package app

import (
	"context"
	"fmt"
	"regexp"

	"mxbridge/internal/config"
	"mxbridge/internal/domain"
)

// Run serves the appservice API until ctx is cancelled.
func (w *Wire) Run(ctx context.Context) error {
	logger := w.Log.GetLogger("app")

	if user, err := w.Client.Whoami(ctx); err != nil {
		logger.Warningf("Homeserver whoami failed: %v", err)
	} else if user != w.UserID {
		logger.Warningf("Homeserver sees us as %s, configured as %s", user, w.UserID)
	}

	userRe, aliasRe, err := namespaceMatchers(w.Config)
	if err != nil {
		return err
	}
	w.AS.QueryUser = func(user domain.UserID) bool {
		return user == w.UserID || (userRe != nil && userRe.MatchString(string(user)))
	}
	w.AS.QueryAlias = func(alias domain.RoomAlias) bool {
		return aliasRe != nil && aliasRe.MatchString(string(alias))
	}
	w.AS.EventHandler = func(evt domain.Event) {
		logger.Debugf("Event %s (%s) in %s from %s", evt.ID, evt.Type, evt.RoomID, evt.Sender)
	}

	addr := fmt.Sprintf("%s:%d", w.Config.Appservice.Hostname, w.Config.Appservice.Port)
	return w.AS.ListenAndServe(ctx, addr)
}

// ReplenishOneTimeKeys mints and publishes a fresh one-time key batch.
func (w *Wire) ReplenishOneTimeKeys(ctx context.Context) error {
	if err := w.Account.GenerateOneTimeKeys(oneTimeKeyBatch); err != nil {
		return err
	}
	if err := publishKeys(ctx, w.Client, w.Account, w.UserID, true); err != nil {
		return err
	}
	return w.Store.PutAccount(w.Account)
}

// namespaceMatchers compiles the configured templates into the same
// regexes the registration claims.
func namespaceMatchers(cfg *config.Config) (userRe, aliasRe *regexp.Regexp, err error) {
	if re := cfg.UserNamespaceRegex(); re != "" {
		if userRe, err = regexp.Compile(re); err != nil {
			return nil, nil, err
		}
	}
	if re := cfg.AliasNamespaceRegex(); re != "" {
		if aliasRe, err = regexp.Compile(re); err != nil {
			return nil, nil, err
		}
	}
	return userRe, aliasRe, nil
}
