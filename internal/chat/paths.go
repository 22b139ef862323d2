package chat

// Remote tree layout. Direct conversations keep their messages under
// messages/{conversationId}; groups keep theirs under
// group-messages/{groupId}. Every member owns a denormalized conversation
// copy under user-conversations/{uid}/{conversationId}.

func usersPath() string { return "users" }

func userPath(uid string) string { return "users/" + uid }

func userConversationsPath(uid string) string { return "user-conversations/" + uid }

func conversationPath(uid, conversationID string) string {
	return "user-conversations/" + uid + "/" + conversationID
}

func messagesPath(conversationID string, isGroup bool) string {
	if isGroup {
		return "group-messages/" + conversationID
	}
	return "messages/" + conversationID
}

func messagePath(conversationID string, isGroup bool, messageID string) string {
	return messagesPath(conversationID, isGroup) + "/" + messageID
}

func groupPath(groupID string) string { return "groups/" + groupID }
