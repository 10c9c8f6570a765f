// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"strings"

	"github.com/xmidt-org/contentcache/model"
)

type webhookAction int

const (
	updateAction webhookAction = iota
	destroyAction
)

func (a webhookAction) String() string {
	if a == destroyAction {
		return "destroy"
	}
	return "update"
}

// parseTopic reads the event out of a topic such as
// ContentManagement.Entry.publish.
func parseTopic(topic string) (webhookAction, model.Environment, error) {
	event := topic
	if i := strings.LastIndexByte(topic, '.'); i >= 0 {
		event = topic[i+1:]
	}

	switch strings.ToLower(event) {
	case "publish":
		return updateAction, model.Published, nil
	case "save", "auto_save":
		return updateAction, model.Preview, nil
	case "unpublish", "delete", "archive":
		return destroyAction, model.Published, nil
	}
	return updateAction, model.Published, BadRequestErr{Message: "unsupported webhook topic " + topic}
}
