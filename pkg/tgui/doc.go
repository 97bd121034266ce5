// Package tgui holds small helpers for Telegram HTML text: escaping,
// inline markup and rune-safe truncation.
package tgui
