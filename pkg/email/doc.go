// Package email delivers transactional email. Postmark sends in production;
// DevSender writes every message to a directory so local runs can inspect
// it. New picks one from Config.
package email
